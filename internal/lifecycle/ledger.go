package lifecycle

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ikhode/erp-modular-sub001/internal/domain"
)

// Ledger records signatures. It never overwrites: a second capture for the
// same (document, role) fails with ErrDuplicateSignature.
type Ledger struct {
	Store   SignatureStore
	Archive SignatureArchive
	Now     func() time.Time
}

func (l Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Capture validates imageData and appends the signature for role.
func (l Ledger) Capture(ctx context.Context, tenantID, documentID, role string, imageData []byte, actorID string) (domain.Signature, error) {
	contentType, err := DetectImage(imageData)
	if err != nil {
		return domain.Signature{}, err
	}
	has, err := l.HasSignature(ctx, tenantID, documentID, role)
	if err != nil {
		return domain.Signature{}, err
	}
	if has {
		return domain.Signature{}, fmt.Errorf("%w: %s already signed", ErrDuplicateSignature, role)
	}
	sig := domain.Signature{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		DocumentID:  documentID,
		Role:        role,
		ImageData:   imageData,
		ContentType: contentType,
		CapturedBy:  actorID,
		CapturedAt:  l.now().UTC().Format(time.RFC3339),
	}
	if l.Archive != nil {
		key := fmt.Sprintf("%s/%s/%s/%s%s", tenantID, documentID, role, sig.ID, extensionFor(contentType))
		ref, err := l.Archive.Put(ctx, key, contentType, imageData)
		if err != nil {
			return domain.Signature{}, fmt.Errorf("archive signature: %w", err)
		}
		sig.ImageRef = ref
	}
	inserted, err := l.Store.InsertIfAbsent(ctx, sig)
	if err != nil {
		return domain.Signature{}, err
	}
	if !inserted {
		return domain.Signature{}, fmt.Errorf("%w: %s already signed", ErrDuplicateSignature, role)
	}
	return sig, nil
}

func (l Ledger) HasSignature(ctx context.Context, tenantID, documentID, role string) (bool, error) {
	sigs, err := l.Store.Signatures(ctx, tenantID, documentID)
	if err != nil {
		return false, err
	}
	_, ok := sigs[role]
	return ok, nil
}

// AllRequiredPresent is true iff every role in roles has signed.
func (l Ledger) AllRequiredPresent(ctx context.Context, tenantID, documentID string, roles []string) (bool, error) {
	missing, err := l.Missing(ctx, tenantID, documentID, roles)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

// Missing returns the sorted subset of roles without a signature.
func (l Ledger) Missing(ctx context.Context, tenantID, documentID string, roles []string) ([]string, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	sigs, err := l.Store.Signatures(ctx, tenantID, documentID)
	if err != nil {
		return nil, err
	}
	return missingRoles(roles, sigs), nil
}

// DetectImage returns the image content type of data, or
// ErrInvalidSignatureFormat when data is empty or not a known image encoding.
func DetectImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", ErrInvalidSignatureFormat)
	}
	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("%w: unrecognized encoding %s", ErrInvalidSignatureFormat, ct)
	}
	return ct, nil
}

// DecodeImage accepts a data URL (data:image/png;base64,...) or bare base64
// as produced by signature pads.
func DecodeImage(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidSignatureFormat)
	}
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 || !strings.HasSuffix(s[:comma], ";base64") {
			return nil, fmt.Errorf("%w: malformed data url", ErrInvalidSignatureFormat)
		}
		if !strings.HasPrefix(s, "data:image/") {
			return nil, fmt.Errorf("%w: data url is not an image", ErrInvalidSignatureFormat)
		}
		s = s[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignatureFormat, err)
	}
	return data, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	}
	return ""
}
