package lifecycle_test

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ikhode/erp-modular-sub001/internal/domain"
	"github.com/ikhode/erp-modular-sub001/internal/lifecycle"
	"github.com/ikhode/erp-modular-sub001/internal/lifecycle/mocks"
	"github.com/ikhode/erp-modular-sub001/internal/store/memory"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x10")

func TestLedgerCaptureOncePerRole(t *testing.T) {
	ctx := context.Background()
	l := lifecycle.Ledger{Store: memory.New(), Now: fixedNow}

	sig, err := l.Capture(ctx, "t1", "d1", domain.RoleEncargado, pngSignature, "alice")
	require.NoError(t, err)
	assert.Equal(t, "image/png", sig.ContentType)
	assert.Equal(t, "2024-01-01T00:00:00Z", sig.CapturedAt)

	_, err = l.Capture(ctx, "t1", "d1", domain.RoleEncargado, pngSignature, "bob")
	assert.ErrorIs(t, err, lifecycle.ErrDuplicateSignature)

	has, err := l.HasSignature(ctx, "t1", "d1", domain.RoleEncargado)
	require.NoError(t, err)
	assert.True(t, has)

	ok, err := l.AllRequiredPresent(ctx, "t1", "d1", []string{domain.RoleEncargado, domain.RoleProveedor})
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = l.AllRequiredPresent(ctx, "t1", "d1", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// same role on another tenant is independent
	_, err = l.Capture(ctx, "t2", "d1", domain.RoleEncargado, pngSignature, "carol")
	assert.NoError(t, err)
}

func TestLedgerRejectsNonImages(t *testing.T) {
	l := lifecycle.Ledger{Store: memory.New()}
	for _, data := range [][]byte{nil, []byte("hello, not an image"), []byte("%PDF-1.4")} {
		_, err := l.Capture(context.Background(), "t1", "d1", domain.RoleCliente, data, "alice")
		assert.ErrorIs(t, err, lifecycle.ErrInvalidSignatureFormat)
	}
}

func TestLedgerInsertRaceReportsDuplicate(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockSignatureStore(ctrl)
	store.EXPECT().Signatures(gomock.Any(), "t1", "d1").Return(map[string]domain.Signature{}, nil)
	store.EXPECT().InsertIfAbsent(gomock.Any(), gomock.Any()).Return(false, nil)

	l := lifecycle.Ledger{Store: store}
	_, err := l.Capture(context.Background(), "t1", "d1", domain.RoleCliente, pngSignature, "alice")
	assert.ErrorIs(t, err, lifecycle.ErrDuplicateSignature)
}

func TestLedgerArchivesImage(t *testing.T) {
	ctrl := gomock.NewController(t)
	archive := mocks.NewMockSignatureArchive(ctrl)
	archive.EXPECT().
		Put(gomock.Any(), gomock.Any(), "image/png", pngSignature).
		DoAndReturn(func(_ context.Context, key, _ string, _ []byte) (string, error) {
			if !strings.HasPrefix(key, "t1/d1/cliente/") || !strings.HasSuffix(key, ".png") {
				t.Fatalf("unexpected key %q", key)
			}
			return "s3://signatures/" + key, nil
		})

	l := lifecycle.Ledger{Store: memory.New(), Archive: archive}
	sig, err := l.Capture(context.Background(), "t1", "d1", domain.RoleCliente, pngSignature, "alice")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sig.ImageRef, "s3://signatures/t1/d1/cliente/"))
}

func TestLedgerArchiveFailureStoresNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	archive := mocks.NewMockSignatureArchive(ctrl)
	archive.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("bucket gone"))

	store := memory.New()
	l := lifecycle.Ledger{Store: store, Archive: archive}
	_, err := l.Capture(context.Background(), "t1", "d1", domain.RoleCliente, pngSignature, "alice")
	require.Error(t, err)
	has, err := l.HasSignature(context.Background(), "t1", "d1", domain.RoleCliente)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestDecodeImage(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString(pngSignature)

	data, err := lifecycle.DecodeImage("data:image/png;base64," + raw)
	require.NoError(t, err)
	assert.Equal(t, pngSignature, data)

	data, err = lifecycle.DecodeImage(raw)
	require.NoError(t, err)
	assert.Equal(t, pngSignature, data)

	for _, bad := range []string{"", "data:text/plain;base64," + raw, "data:image/png," + raw, "!!!not-base64"} {
		_, err := lifecycle.DecodeImage(bad)
		assert.ErrorIs(t, err, lifecycle.ErrInvalidSignatureFormat, bad)
	}
}
