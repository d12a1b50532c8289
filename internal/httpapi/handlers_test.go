package httpapi_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/okabe/seriescrub/internal/domain/session"
	"github.com/okabe/seriescrub/internal/httpapi"
)

const sampleCSV = `timestamp,load
2024-01-01 00:00:00,5
2024-01-01 01:00:00,10
2024-01-01 02:00:00,15
2024-01-01 03:00:00,20
2024-01-01 04:00:00,25
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := httpapi.NewRouter(session.NewManager(logger), logger, httpapi.Options{})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/sessions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var info session.Info
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	require.NotEmpty(t, info.ID)
	return info.ID
}

func uploadCSV(t *testing.T, srv *httptest.Server, sessionID, filename, content string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/sessions/"+sessionID+"/data", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, resp, &body)
	return body.Error.Code
}

type metaBody struct {
	Seq         int    `json:"seq"`
	Criteria    string `json:"criteria"`
	RemovedRows int    `json:"removed_rows"`
	Rows        int    `json:"rows"`
	Active      bool   `json:"active"`
}

type historyBody struct {
	Snapshots []metaBody `json:"snapshots"`
}

func getHistory(t *testing.T, srv *httptest.Server, sessionID string) []metaBody {
	t.Helper()
	resp, err := http.Get(srv.URL + "/sessions/" + sessionID + "/history")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body historyBody
	decodeBody(t, resp, &body)
	return body.Snapshots
}

func TestWorkflow_UploadCleanRestoreExport(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	base := srv.URL + "/sessions/" + id

	resp := uploadCSV(t, srv, id, "data.csv", sampleCSV)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Preview does not touch history.
	resp = postJSON(t, base+"/selections", map[string]any{
		"column":      "load",
		"value_range": map[string]float64{"lower": 8, "upper": 18},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var preview struct {
		Removed int    `json:"removed"`
		Rows    int    `json:"rows_after"`
		Mask    []bool `json:"mask"`
	}
	decodeBody(t, resp, &preview)
	require.Equal(t, 2, preview.Removed)
	require.Equal(t, 3, preview.Rows)
	require.Equal(t, []bool{false, true, true, false, false}, preview.Mask)
	require.Len(t, getHistory(t, srv, id), 1)

	// Commit the same removal.
	resp = postJSON(t, base+"/removals", map[string]any{
		"column":      "load",
		"value_range": map[string]float64{"lower": 8, "upper": 18},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var meta metaBody
	decodeBody(t, resp, &meta)
	require.Equal(t, 1, meta.Seq)
	require.Equal(t, 2, meta.RemovedRows)
	require.Equal(t, 3, meta.Rows)

	// Second removal, then restore to the original upload.
	resp = postJSON(t, base+"/removals", map[string]any{
		"column":      "load",
		"value_range": map[string]float64{"lower": 25, "upper": 25},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	require.Len(t, getHistory(t, srv, id), 3)

	resp, err := http.Post(base+"/history/0/restore", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &meta)
	require.Equal(t, 0, meta.Seq)
	require.True(t, meta.Active)

	// Restore keeps forward history until the next removal truncates it.
	require.Len(t, getHistory(t, srv, id), 3)
	resp = postJSON(t, base+"/removals", map[string]any{
		"column":      "load",
		"value_range": map[string]float64{"lower": 5, "upper": 5},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decodeBody(t, resp, &meta)
	require.Equal(t, 1, meta.Seq)
	history := getHistory(t, srv, id)
	require.Len(t, history, 2)
	require.True(t, history[1].Active)

	// Export reflects the active state.
	resp, err = http.Get(base + "/data?format=csv")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	out := string(raw)
	require.Contains(t, out, "timestamp,load")
	require.NotContains(t, out, ",5\n")
	require.Contains(t, out, ",25\n")
}

func TestStatisticalRemoval(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	base := srv.URL + "/sessions/" + id

	var csv strings.Builder
	csv.WriteString("timestamp,load\n")
	for i, v := range []int{10, 11, 12, 11, 10, 12, 11, 10, 500} {
		fmt.Fprintf(&csv, "2024-01-%02d,%d\n", i+1, v)
	}
	resp := uploadCSV(t, srv, id, "data.csv", csv.String())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, base+"/removals", map[string]any{
		"column": "load",
		"method": "iqr",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var meta metaBody
	decodeBody(t, resp, &meta)
	require.Equal(t, 1, meta.RemovedRows)
	require.Equal(t, 8, meta.Rows)
	require.Contains(t, meta.Criteria, "IQR method")
}

func TestRemovalRejectsMethodWithExplicitBounds(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	base := srv.URL + "/sessions/" + id

	resp := uploadCSV(t, srv, id, "data.csv", sampleCSV)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, base+"/removals", map[string]any{
		"column":      "load",
		"method":      "iqr",
		"value_range": map[string]float64{"lower": 8, "upper": 18},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "BAD_REQUEST", errorCode(t, resp))
	require.Len(t, getHistory(t, srv, id), 1)

	resp = postJSON(t, base+"/selections", map[string]any{
		"column": "load",
		"method": "zscore",
		"time_range": map[string]string{
			"start": "2024-01-01T00:00:00Z",
			"end":   "2024-01-01T02:00:00Z",
		},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "BAD_REQUEST", errorCode(t, resp))
}

func TestExportSource(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	base := srv.URL + "/sessions/" + id

	resp := uploadCSV(t, srv, id, "data.csv", sampleCSV)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, base+"/removals", map[string]any{
		"column":      "load",
		"value_range": map[string]float64{"lower": 8, "upper": 18},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	var info struct {
		Rows int `json:"rows"`
	}
	resp, err := http.Get(base + "/data/info")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &info)
	require.Equal(t, 3, info.Rows)

	resp, err = http.Get(base + "/data/info?source=original")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &info)
	require.Equal(t, 5, info.Rows)

	// The original upload still carries the removed rows.
	resp, err = http.Get(base + "/data?format=csv&source=original")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(raw), ",10\n")
	require.Contains(t, string(raw), ",15\n")

	resp, err = http.Get(base + "/data?source=backup")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "BAD_REQUEST", errorCode(t, resp))
}

func TestEmptySelectionLeavesHistoryUnchanged(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	base := srv.URL + "/sessions/" + id

	resp := uploadCSV(t, srv, id, "data.csv", sampleCSV)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, base+"/removals", map[string]any{
		"column":      "load",
		"value_range": map[string]float64{"lower": 100, "upper": 200},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, "EMPTY_SELECTION", errorCode(t, resp))
	require.Len(t, getHistory(t, srv, id), 1)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	base := srv.URL + "/sessions/" + id

	t.Run("unknown session", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/sessions/nope/history")
		require.NoError(t, err)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.Equal(t, "SESSION_NOT_FOUND", errorCode(t, resp))
	})

	t.Run("no data loaded", func(t *testing.T) {
		resp, err := http.Get(base + "/data/info")
		require.NoError(t, err)
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		require.Equal(t, "NO_DATA_LOADED", errorCode(t, resp))
	})

	t.Run("invalid upload", func(t *testing.T) {
		resp := uploadCSV(t, srv, id, "data.csv", "not,a\nvalid,table\n")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, "INVALID_FORMAT", errorCode(t, resp))
	})

	resp := uploadCSV(t, srv, id, "data.csv", sampleCSV)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	t.Run("unknown column", func(t *testing.T) {
		resp := postJSON(t, base+"/removals", map[string]any{
			"column":      "voltage",
			"value_range": map[string]float64{"lower": 0, "upper": 1},
		})
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.Equal(t, "COLUMN_NOT_FOUND", errorCode(t, resp))
	})

	t.Run("inverted bounds", func(t *testing.T) {
		resp := postJSON(t, base+"/removals", map[string]any{
			"column":      "load",
			"value_range": map[string]float64{"lower": 20, "upper": 10},
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, "INVALID_RANGE", errorCode(t, resp))
	})

	t.Run("unknown method", func(t *testing.T) {
		resp := postJSON(t, base+"/removals", map[string]any{
			"column": "load",
			"method": "median",
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, "UNKNOWN_METHOD", errorCode(t, resp))
	})

	t.Run("invalid restore sequence", func(t *testing.T) {
		resp, err := http.Post(base+"/history/42/restore", "application/json", nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.Equal(t, "INVALID_SEQUENCE", errorCode(t, resp))
	})

	t.Run("missing column field", func(t *testing.T) {
		resp := postJSON(t, base+"/removals", map[string]any{})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, "BAD_REQUEST", errorCode(t, resp))
	})

	t.Run("unknown export format", func(t *testing.T) {
		resp, err := http.Get(base + "/data?format=xlsx")
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, "UNKNOWN_FORMAT", errorCode(t, resp))
	})
}

func TestStatsEndpoints(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	base := srv.URL + "/sessions/" + id

	var csv strings.Builder
	csv.WriteString("timestamp,a,b\n")
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&csv, "2024-01-%02d,%d,%d\n", i, i, 2*i)
	}
	resp := uploadCSV(t, srv, id, "data.csv", csv.String())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	t.Run("describe", func(t *testing.T) {
		resp, err := http.Get(base + "/stats?columns=a")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			Columns []struct {
				Column string  `json:"column"`
				Count  int     `json:"count"`
				Mean   float64 `json:"mean"`
			} `json:"columns"`
		}
		decodeBody(t, resp, &body)
		require.Len(t, body.Columns, 1)
		require.Equal(t, "a", body.Columns[0].Column)
		require.Equal(t, 10, body.Columns[0].Count)
		require.InDelta(t, 5.5, body.Columns[0].Mean, 1e-9)
	})

	t.Run("correlation", func(t *testing.T) {
		resp, err := http.Get(base + "/stats/correlation")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			Tests []struct {
				Correlation float64 `json:"correlation"`
				Significant bool    `json:"significant_at_005"`
			} `json:"tests"`
		}
		decodeBody(t, resp, &body)
		require.Len(t, body.Tests, 1)
		require.InDelta(t, 1.0, body.Tests[0].Correlation, 1e-9)
		require.True(t, body.Tests[0].Significant)
	})

	t.Run("trend", func(t *testing.T) {
		resp, err := http.Get(base + "/stats/trend?column=b")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			Slope     float64 `json:"slope"`
			Direction string  `json:"direction"`
		}
		decodeBody(t, resp, &body)
		require.InDelta(t, 2.0, body.Slope, 1e-9)
		require.Equal(t, "increasing", body.Direction)
	})

	t.Run("outlier bounds", func(t *testing.T) {
		resp, err := http.Get(base + "/stats/outliers?column=a&method=zscore&k=2")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			Method  string `json:"method"`
			Flagged int    `json:"flagged"`
		}
		decodeBody(t, resp, &body)
		require.Equal(t, "zscore", body.Method)
		require.Equal(t, 0, body.Flagged)
	})

	t.Run("compare periods", func(t *testing.T) {
		resp, err := http.Get(base + "/stats/compare?column=a" +
			"&a_start=2024-01-01T00:00:00Z&a_end=2024-01-05T00:00:00Z" +
			"&b_start=2024-01-06T00:00:00Z&b_end=2024-01-10T00:00:00Z")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			PeriodA struct {
				Count int     `json:"count"`
				Mean  float64 `json:"mean"`
			} `json:"period_a"`
			TTest struct {
				Statistic   float64 `json:"statistic"`
				Significant bool    `json:"significant_at_005"`
			} `json:"t_test"`
			FTest struct {
				PValue      float64 `json:"p_value"`
				Significant bool    `json:"significant_at_005"`
			} `json:"f_test"`
			MannWhitney struct {
				Significant bool `json:"significant_at_005"`
			} `json:"mann_whitney"`
		}
		decodeBody(t, resp, &body)
		require.Equal(t, 5, body.PeriodA.Count)
		require.InDelta(t, 3.0, body.PeriodA.Mean, 1e-9)
		require.InDelta(t, -5.0, body.TTest.Statistic, 1e-9)
		require.True(t, body.TTest.Significant)
		require.InDelta(t, 1.0, body.FTest.PValue, 1e-6)
		require.False(t, body.FTest.Significant)
		require.True(t, body.MannWhitney.Significant)
	})

	t.Run("compare rejects malformed bound", func(t *testing.T) {
		resp, err := http.Get(base + "/stats/compare?column=a&a_start=yesterday" +
			"&a_end=2024-01-05T00:00:00Z&b_start=2024-01-06T00:00:00Z&b_end=2024-01-10T00:00:00Z")
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, "BAD_REQUEST", errorCode(t, resp))
	})

	t.Run("correlation heatmap html", func(t *testing.T) {
		resp, err := http.Get(base + "/charts/correlation.html")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		require.Contains(t, string(raw), "echarts")
	})

	t.Run("scatter html", func(t *testing.T) {
		resp, err := http.Get(base + "/charts/scatter.html?x=a&y=b")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		require.Contains(t, string(raw), "echarts")
	})

	t.Run("scatter unknown column", func(t *testing.T) {
		resp, err := http.Get(base + "/charts/scatter.html?x=a&y=nope")
		require.NoError(t, err)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.Equal(t, "COLUMN_NOT_FOUND", errorCode(t, resp))
	})

	t.Run("report", func(t *testing.T) {
		resp, err := http.Get(base + "/report")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		require.Contains(t, string(raw), "== Dataset overview ==")
		require.Contains(t, string(raw), "== Column statistics ==")
	})
}

func TestChartEndpoints(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	base := srv.URL + "/sessions/" + id

	resp := uploadCSV(t, srv, id, "data.csv", sampleCSV)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	t.Run("timeseries png", func(t *testing.T) {
		resp, err := http.Get(base + "/charts/timeseries.png?column=load")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		require.True(t, bytes.HasPrefix(raw, []byte("\x89PNG")))
	})

	t.Run("histogram png", func(t *testing.T) {
		resp, err := http.Get(base + "/charts/histogram.png?column=load&bins=3")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	})

	t.Run("timeseries html", func(t *testing.T) {
		resp, err := http.Get(base + "/charts/timeseries.html")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		require.Contains(t, string(raw), "echarts")
	})
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)

	resp, err := http.Get(srv.URL + "/sessions")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Sessions []session.Info `json:"sessions"`
	}
	decodeBody(t, resp, &list)
	require.Len(t, list.Sessions, 1)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/"+id, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/sessions/" + id + "/history")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "SESSION_NOT_FOUND", errorCode(t, resp))
}
