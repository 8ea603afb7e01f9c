package problem_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drillforge/core/problem"
)

func TestNewRegistry_LoadsEmbeddedCatalog(t *testing.T) {
	r, err := problem.NewRegistry()
	require.NoError(t, err)
	all := r.All()
	require.NotEmpty(t, all)

	p, err := r.Get("two-sum")
	require.NoError(t, err)
	assert.Equal(t, "Two Sum", p.Title)
	assert.Equal(t, "easy", p.Difficulty)
}

func TestRegistry_UnknownProblem(t *testing.T) {
	r, err := problem.NewRegistry()
	require.NoError(t, err)
	_, err = r.Get("does-not-exist")
	require.Error(t, err)
	var unknown problem.ErrUnknownProblem
	require.ErrorAs(t, err, &unknown)
}

func TestRegistry_PickProblemRoundRobinsDeterministically(t *testing.T) {
	r, err := problem.NewRegistry()
	require.NoError(t, err)
	all := r.All()

	for i := 0; i < len(all)*2; i++ {
		got := r.PickProblem()
		assert.Equal(t, all[i%len(all)].ID, got.ID)
	}
}

func TestNewRegistryFromYAML_RejectsEmptyCatalog(t *testing.T) {
	_, err := problem.NewRegistryFromYAML([]byte("problems: []"))
	require.Error(t, err)
}

func TestNewRegistryFromYAML_RejectsMissingID(t *testing.T) {
	_, err := problem.NewRegistryFromYAML([]byte(`
problems:
  - title: Untitled
    description: no id here
    difficulty: easy
`))
	require.Error(t, err)
}
