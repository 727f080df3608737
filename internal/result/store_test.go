package result

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/insight-dashboard/insight/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_EmptyByDefault(t *testing.T) {
	s := NewStore()
	_, err := s.Current()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestStore_ReplaceIsWholesale(t *testing.T) {
	s := NewStore()

	first := &models.AnalysisResult{Summary: models.Summary{Rows: 10}}
	gen1 := s.Replace(first, json.RawMessage(`{"summary":{"rows":10}}`), Meta{FileName: "a.csv", JobID: "j1"})

	second := &models.AnalysisResult{Summary: models.Summary{Rows: 20}}
	gen2 := s.Replace(second, json.RawMessage(`{"summary":{"rows":20}}`), Meta{FileName: "b.csv", JobID: "j2"})

	assert.Equal(t, uint64(1), gen1)
	assert.Equal(t, uint64(2), gen2)

	snap, err := s.Current()
	require.NoError(t, err)
	assert.Same(t, second, snap.Result)
	assert.Equal(t, "b.csv", snap.Meta.FileName)
	assert.Equal(t, "j2", snap.Meta.JobID)
	assert.Equal(t, uint64(2), snap.Meta.Generation)
	assert.False(t, snap.Meta.ReceivedAt.IsZero())
	assert.JSONEq(t, `{"summary":{"rows":20}}`, string(snap.Raw))
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	s.Replace(&models.AnalysisResult{}, nil, Meta{})
	s.Clear()

	_, err := s.Current()
	assert.ErrorIs(t, err, ErrEmpty)

	gen := s.Replace(&models.AnalysisResult{}, nil, Meta{})
	assert.Equal(t, uint64(2), gen, "generation keeps counting after a clear")
}

func TestStore_ConcurrentReadersSeeCompleteSnapshots(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	for i := 1; i <= 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			s.Replace(&models.AnalysisResult{Summary: models.Summary{Rows: n}}, nil, Meta{JobID: "job"})
		}(i)
		go func() {
			defer wg.Done()
			if snap, err := s.Current(); err == nil {
				assert.NotNil(t, snap.Result)
				assert.Equal(t, "job", snap.Meta.JobID)
			}
		}()
	}
	wg.Wait()

	snap, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, uint64(50), snap.Meta.Generation)
}
