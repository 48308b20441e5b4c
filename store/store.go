package store

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UsageRecorder receives transfer statistics. The store treats it as
// best-effort: a failed ledger write never fails the transfer itself.
type UsageRecorder interface {
	RecordUpload(name string, originalSize, storedSize int64, mimeType, origin string) error
	IncrementDownload(name string) error
}

// FileInfo is one listing entry. Size is the original (pre-compression)
// size recovered from envelope metadata when possible.
type FileInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// FileStore owns the upload directory: it encrypts uploads into envelope
// artifacts, issues delete tokens, and serves reads, listings, and deletes.
// All operations are safe for concurrent use across requests; operations on
// the same record name are intentionally not serialized (see Create).
type FileStore struct {
	dir    string
	codec  *Codec
	tokens *TokenStore
	usage  UsageRecorder
	log    *zap.SugaredLogger
}

// NewFileStore creates the upload directory if needed and generates the
// process-lifetime encryption key. usage may be nil to disable statistics;
// lg may be nil to disable logging.
func NewFileStore(dir string, usage UsageRecorder, lg *zap.SugaredLogger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	codec, err := NewCodec()
	if err != nil {
		return nil, err
	}
	if lg == nil {
		lg = zap.NewNop().Sugar()
	}
	return &FileStore{
		dir:    dir,
		codec:  codec,
		tokens: NewTokenStore(dir),
		usage:  usage,
		log:    lg,
	}, nil
}

// Create stores payload under a sanitized, collision-free name derived from
// nameHint and returns the final name together with the one-time delete
// token. The content artifact is written to a temporary file and renamed
// into place so a concurrent List never observes a truncated envelope.
//
// The free-name check and the final rename are not one atomic step: two
// concurrent uploads with the same hint can, in principle, both observe a
// name as free. This store accepts that race rather than serializing
// uploads behind a cross-request lock.
func (s *FileStore) Create(nameHint string, payload []byte, origin string) (string, string, error) {
	if len(payload) == 0 {
		return "", "", ErrEmptyPayload
	}

	name := s.resolveName(sanitizeName(nameHint))

	body, compressed := selectCompression(payload, name)
	ciphertext, err := s.codec.Encode(body, name, compressed, int64(len(payload)))
	if err != nil {
		return "", "", fmt.Errorf("encode envelope: %w", err)
	}

	if err := s.publish(name, ciphertext); err != nil {
		return "", "", err
	}

	token, err := s.tokens.Issue(name)
	if err != nil {
		// A record without a token sidecar would be undeletable through
		// the protocol; roll the content artifact back instead.
		_ = removeQuiet(filepath.Join(s.dir, name))
		return "", "", err
	}

	if s.usage != nil {
		if err := s.usage.RecordUpload(name, int64(len(payload)), int64(len(ciphertext)), mimeHint(name), origin); err != nil {
			s.log.Warnf("ledger record failed for %s: %v", name, err)
		}
	}

	s.log.Infof("stored %s (%d bytes, compressed=%v)", name, len(payload), compressed)
	return name, token, nil
}

// Read returns the decrypted payload of name and a MIME hint derived from
// its extension.
func (s *FileStore) Read(name string) ([]byte, string, error) {
	if !validRecordName(name) {
		return nil, "", ErrNotFound
	}
	ciphertext, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("read artifact: %w", err)
	}

	payload, _, err := s.codec.Decode(ciphertext, name)
	if err != nil {
		return nil, "", err
	}

	if s.usage != nil {
		if err := s.usage.IncrementDownload(name); err != nil {
			s.log.Warnf("ledger increment failed for %s: %v", name, err)
		}
	}
	return payload, mimeHint(name), nil
}

// Delete removes the record and its token sidecar, provided the supplied
// token verifies. Removal of the pair is not atomic; a sweeper pass racing
// this call may have taken either artifact already, which is tolerated.
func (s *FileStore) Delete(name, token string) error {
	if !validRecordName(name) {
		return ErrNotFound
	}
	if _, err := os.Stat(filepath.Join(s.dir, name)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("stat artifact: %w", err)
	}
	if token == "" || !s.tokens.Verify(name, token) {
		return ErrForbidden
	}

	if err := removeQuiet(filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("remove artifact: %w", err)
	}
	if err := s.tokens.Remove(name); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	s.log.Infof("deleted %s", name)
	return nil
}

// List enumerates stored records, most recently modified first. Original
// sizes come from envelope metadata; an envelope that no longer decodes
// (for example one written by a previous process) degrades to its raw
// on-disk size rather than failing the listing.
func (s *FileStore) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read upload dir: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !validRecordName(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		size := info.Size()
		if ciphertext, err := os.ReadFile(filepath.Join(s.dir, name)); err == nil {
			if meta, err := s.codec.DecodeMeta(ciphertext); err == nil {
				size = meta.OriginalSize
			}
		}
		files = append(files, FileInfo{Name: name, Size: size, ModTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ModTime.After(files[j].ModTime) })
	return files, nil
}

// publish writes ciphertext to a temporary dotfile in the upload directory
// and renames it into place. Dotfiles are invisible to List and Read, so a
// half-written envelope can never be observed.
func (s *FileStore) publish(name string, ciphertext []byte) error {
	tmp := filepath.Join(s.dir, ".upload-"+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, ciphertext, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		_ = removeQuiet(tmp)
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}

// resolveName appends _1, _2, ... before the extension until the name does
// not collide with an existing content artifact.
func (s *FileStore) resolveName(name string) string {
	if !s.exists(name) {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if !s.exists(candidate) {
			return candidate
		}
	}
}

func (s *FileStore) exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

// sanitizeName strips path components and any character outside the
// allowed set (letters, digits, space, dot, underscore, hyphen). An empty
// result gets a generated fallback name.
func sanitizeName(hint string) string {
	hint = filepath.Base(strings.ReplaceAll(hint, "\\", "/"))

	var b strings.Builder
	for _, r := range hint {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	name := strings.Trim(b.String(), " .")

	if name == "" {
		name = fmt.Sprintf("file_%d", time.Now().UnixNano())
	}
	// A record named like a sidecar would shadow the token namespace.
	if isTokenSidecar(name) {
		name = strings.TrimSuffix(name, tokenSuffix) + "_token"
	}
	return name
}

// validRecordName rejects anything that is not a plain, visible filename in
// the upload directory: path escapes, dotfiles (including in-flight temp
// artifacts), and token sidecars.
func validRecordName(name string) bool {
	if name == "" || name != filepath.Base(name) {
		return false
	}
	if strings.HasPrefix(name, ".") || isTokenSidecar(name) {
		return false
	}
	return true
}

// mimeHint maps a filename extension to a content type. Lookup only, no
// content sniffing.
func mimeHint(name string) string {
	if typ := mime.TypeByExtension(filepath.Ext(name)); typ != "" {
		return typ
	}
	return "application/octet-stream"
}

// removeQuiet deletes a path, treating "already gone" as success so that
// explicit deletes and the sweeper can race without spurious errors.
func removeQuiet(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
