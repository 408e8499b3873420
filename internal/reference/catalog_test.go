package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogRelationSymmetry(t *testing.T) {
	catalog := Default()

	for _, subject := range catalog.KnownSubjects() {
		for _, related := range catalog.RelatedTo(subject) {
			assert.True(t, catalog.AreRelated(related, subject),
				"relation %s -> %s must be symmetric", subject, related)
		}
	}
}

func TestDefaultCatalogScores(t *testing.T) {
	catalog := Default()

	assert.True(t, catalog.Known("民法"))
	assert.Greater(t, catalog.ImportanceOf("民法"), DefaultScore)
	assert.Equal(t, DefaultScore, catalog.ImportanceOf("不存在的科目"))
	assert.Equal(t, DefaultScore, catalog.DifficultyOf("不存在的科目"))
}

func TestDefaultCatalogPrerequisites(t *testing.T) {
	catalog := Default()

	core, ok := catalog.CoreOf("民事诉讼法")
	require.True(t, ok)
	assert.Equal(t, "民法", core)

	core, ok = catalog.CoreOf("刑事诉讼法")
	require.True(t, ok)
	assert.Equal(t, "刑法", core)

	_, ok = catalog.CoreOf("民法")
	assert.False(t, ok)
}

func TestDefaultCatalogHardSubjects(t *testing.T) {
	catalog := Default()

	assert.True(t, catalog.IsHard("民法"))
	assert.False(t, catalog.IsHard("不存在的科目"), "default difficulty sits below the hard threshold")
}

func TestCatalogCodes(t *testing.T) {
	catalog := Default()

	assert.Equal(t, "minfa", catalog.CodeOf("民法"))
	assert.NotEmpty(t, catalog.CodeOf("未收录科目"), "unknown subjects still get a usable fallback code")
}
