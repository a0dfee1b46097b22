package smoketest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/lattice/lattice"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func newIndex() (lattice.Index, error) {
	return lattice.New(lattice.Config{Capacity: 4})
}

func TestRun(t *testing.T) {
	idx, err := newIndex()
	require.NoError(t, err)

	s := DefaultScenario()
	s.Objects = 64
	s.Queries = 32

	res, err := Run(context.Background(), idx, s)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, res.Status)
	require.Empty(t, res.Error)

	hotspotObjects := int64(s.Hotspots[0].Count)
	require.Equal(t, int64(s.Workers*s.Objects)+hotspotObjects, res.Inserted)
	require.Zero(t, res.Rejected)
	require.Equal(t, int64(s.Workers*s.Queries), res.Hits)
	require.Equal(t, int(res.Inserted-res.Removed), res.Objects)
	require.Equal(t, s.Ticks, res.Ticks)
	require.Greater(t, res.Moved, 0)
	require.Equal(t, 1, res.Lattice.SubLattices)
	require.Equal(t, res.Objects, res.Lattice.Occupants)
}

func TestRunInvalidScenario(t *testing.T) {
	idx, err := newIndex()
	require.NoError(t, err)

	s := DefaultScenario()
	s.Workers = 0

	res, err := Run(context.Background(), idx, s)
	require.Error(t, err)
	require.True(t, errors.IsType(err, ErrTypeInvalidScenario))
	require.Equal(t, StatusFailed, res.Status)
	require.NotEmpty(t, res.Error)
}

func TestRunCanceled(t *testing.T) {
	idx, err := newIndex()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, idx, DefaultScenario())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, StatusFailed, res.Status)
}

func TestLoadScenario(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		filename string
		content  string
	}{
		{
			name:     "toml",
			filename: "scenario.toml",
			content: `
name = "hotspots"
workers = 2
objects = 10
timeout = "5s"

[[hotspots]]
x = 1
y = 2
z = 3
count = 20
`,
		},
		{
			name:     "yaml",
			filename: "scenario.yaml",
			content: `
name: hotspots
workers: 2
objects: 10
timeout: 5s
hotspots:
  - x: 1
    y: 2
    z: 3
    count: 20
`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			filename := filepath.Join(dir, test.filename)
			require.NoError(t, os.WriteFile(filename, []byte(test.content), 0o600))

			s, err := LoadScenario(filename)
			require.NoError(t, err)
			require.Equal(t, "hotspots", s.Name)
			require.Equal(t, 2, s.Workers)
			require.Equal(t, 10, s.Objects)
			require.Equal(t, 5*time.Second, s.Timeout)
			require.Equal(t, []Hotspot{{X: 1, Y: 2, Z: 3, Count: 20}}, s.Hotspots)

			// Unset fields keep their default value.
			require.Equal(t, DefaultScenario().Spread, s.Spread)
		})
	}

	t.Run("unsupported extension", func(t *testing.T) {
		filename := filepath.Join(dir, "scenario.json")
		require.NoError(t, os.WriteFile(filename, []byte("{}"), 0o600))

		_, err := LoadScenario(filename)
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeInvalidScenario))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadScenario(filepath.Join(dir, "missing.toml"))
		require.Error(t, err)
	})
}

func TestHandleSmokeTest(t *testing.T) {
	t.Run("smoke test success", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ctx = context.WithValue(ctx, testCtxKeyValue, testContext{
			Context: ctx,
			Cancel:  cancel,
		})

		var gotResult bool
		smokeTest := HandleSmokeTest(ctx, Options{
			Scenario: DefaultScenario(),
			NewIndex: newIndex,
			SendResult: func(_ context.Context, res Results) error {
				require.Equal(t, "request", res.Scenario)
				require.Equal(t, StatusSuccess, res.Status)
				require.Equal(t, int64(2*16+32), res.Inserted)
				gotResult = true
				return nil
			},
		})

		body, err := json.Marshal(map[string]any{
			"name":    "request",
			"workers": 2,
			"objects": 16,
		})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "http://latticed/smoke-test", bytes.NewBuffer(body))
		smokeTest.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		<-ctx.Done()
		require.True(t, gotResult)
	})

	t.Run("smoke test bad request", func(t *testing.T) {
		smokeTest := HandleSmokeTest(context.Background(), Options{
			Scenario: DefaultScenario(),
			NewIndex: newIndex,
			SendResult: func(context.Context, Results) error {
				require.FailNow(t, "no run expected")
				return nil
			},
		})

		for _, body := range []string{"{", `{"workers":-1}`} {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "http://latticed/smoke-test", bytes.NewBufferString(body))
			smokeTest.ServeHTTP(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		}
	})
}
