package storage

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/config"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(config.UploadConfig{
		Dir:         t.TempDir(),
		AllowedExts: []string{"png", "jpg", "jpeg", "pdf", "docx", "xlsx"},
	})
}

func TestStore_Allowed(t *testing.T) {
	s := testStore(t)

	assert.True(t, s.Allowed("report.pdf"))
	assert.True(t, s.Allowed("photo.PNG"))
	assert.False(t, s.Allowed("malware.exe"))
	assert.False(t, s.Allowed("script.pdf.sh"))
	assert.False(t, s.Allowed("noextension"))
}

func TestStore_SaveWritesFileWithRandomPrefix(t *testing.T) {
	s := testStore(t)

	saved, err := s.Save(strings.NewReader("content"), "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", saved.Name)
	assert.True(t, strings.HasSuffix(saved.Path, "_report.pdf"))

	data, err := os.ReadFile(saved.Path)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	again, err := s.Save(strings.NewReader("content"), "report.pdf")
	require.NoError(t, err)
	assert.NotEqual(t, saved.Path, again.Path)
}

func TestStore_SaveRejectsDisallowedExtension(t *testing.T) {
	s := testStore(t)

	_, err := s.Save(strings.NewReader("x"), "evil.exe")
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "report.pdf", SanitizeFileName("report.pdf"))
	assert.Equal(t, "my_report_v2.pdf", SanitizeFileName("my report?v2.pdf"))
	assert.Equal(t, "passwd", SanitizeFileName("../../etc/passwd"))
	assert.Equal(t, "rapor__zeti.pdf", SanitizeFileName("rapor özeti.pdf"))
	assert.Equal(t, "file", SanitizeFileName(""))
}
