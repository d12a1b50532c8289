package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okabe/seriescrub/internal/domain/outlier"
	"github.com/okabe/seriescrub/internal/domain/session"
	"github.com/okabe/seriescrub/internal/domain/table"
	"github.com/okabe/seriescrub/internal/ingest"
	"github.com/okabe/seriescrub/internal/plot"
	"github.com/okabe/seriescrub/internal/report"
	"github.com/okabe/seriescrub/internal/stats"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions.Create()
	writeJSON(w, http.StatusCreated, sess.Info())
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]session.Info{"sessions": s.sessions.List()})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.uploadMaxBytes)
	if err := r.ParseMultipartForm(s.uploadMaxBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: APIError{
			Code: "BAD_UPLOAD", Message: fmt.Sprintf("reading multipart form: %v", err),
		}})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: APIError{
			Code:         "BAD_UPLOAD",
			Message:      "missing form file \"file\"",
			RecoveryHint: "Send the dataset as multipart field \"file\"",
		}})
		return
	}
	defer file.Close()

	tbl, err := ingest.ParseFile(header.Filename, file)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := sess.Upload(tbl); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tbl.Info())
}

// sourceTable resolves the ?source= query: the active table by default, the
// sequence 0 upload for source=original.
func (s *Server) sourceTable(w http.ResponseWriter, r *http.Request, sess *session.Session) (*table.Table, bool) {
	var tbl *table.Table
	var err error
	switch source := r.URL.Query().Get("source"); source {
	case "", "active":
		tbl, err = sess.Current()
	case "original":
		tbl, err = sess.Original()
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: APIError{
			Code: "BAD_REQUEST", Message: fmt.Sprintf("unknown source %q", source),
			RecoveryHint: "Use source=active or source=original",
		}})
		return nil, false
	}
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return tbl, true
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	tbl, ok := s.sourceTable(w, r, sess)
	if !ok {
		return
	}

	var err error
	format := r.URL.Query().Get("format")
	switch format {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="cleaned.csv"`)
		err = ingest.WriteCSV(w, tbl)
	case "tsv":
		w.Header().Set("Content-Type", "text/tab-separated-values")
		w.Header().Set("Content-Disposition", `attachment; filename="cleaned.tsv"`)
		err = ingest.WriteTSV(w, tbl)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: APIError{
			Code: "UNKNOWN_FORMAT", Message: fmt.Sprintf("unknown export format %q", format),
			RecoveryHint: "Use format=csv or format=tsv",
		}})
		return
	}
	if err != nil {
		s.logger.Error("export failed", "error", err)
	}
}

func (s *Server) handleDataInfo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	tbl, ok := s.sourceTable(w, r, sess)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tbl.Info())
}

// selectionRequest describes a removal or preview. Either explicit bounds
// (time_range / value_range) or a statistical method must be given.
type selectionRequest struct {
	Column     string      `json:"column"`
	TimeRange  *timeRange  `json:"time_range,omitempty"`
	ValueRange *valueRange `json:"value_range,omitempty"`
	Method     string      `json:"method,omitempty"`
	Multiplier float64     `json:"multiplier,omitempty"`
}

type timeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type valueRange struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

func (req *selectionRequest) criteria() outlier.Criteria {
	crit := outlier.Criteria{}
	if req.TimeRange != nil {
		crit.Time = &outlier.TimeRange{Start: req.TimeRange.Start, End: req.TimeRange.End}
	}
	if req.ValueRange != nil {
		crit.Value = &outlier.ValueRange{Lower: req.ValueRange.Lower, Upper: req.ValueRange.Upper}
	}
	return crit
}

func (req *selectionRequest) statistical() bool {
	return req.Method != "" && req.Method != string(outlier.MethodRange)
}

func decodeSelection(w http.ResponseWriter, r *http.Request) (*selectionRequest, bool) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: APIError{
			Code: "BAD_REQUEST", Message: fmt.Sprintf("decoding request body: %v", err),
		}})
		return nil, false
	}
	if strings.TrimSpace(req.Column) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: APIError{
			Code: "BAD_REQUEST", Message: "column is required",
		}})
		return nil, false
	}
	if req.statistical() && (req.TimeRange != nil || req.ValueRange != nil) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: APIError{
			Code:         "BAD_REQUEST",
			Message:      fmt.Sprintf("method %q cannot be combined with explicit bounds", req.Method),
			RecoveryHint: "Send either a statistical method or time_range/value_range, not both",
		}})
		return nil, false
	}
	if req.Multiplier == 0 {
		req.Multiplier = 1.5
	}
	return &req, true
}

type previewResponse struct {
	Column   string           `json:"column"`
	Removed  int              `json:"removed"`
	Rows     int              `json:"rows_after"`
	Criteria outlier.Criteria `json:"criteria"`
	Mask     []bool           `json:"mask"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	req, ok := decodeSelection(w, r)
	if !ok {
		return
	}

	var sel *outlier.Selection
	var err error
	if req.statistical() {
		tbl, terr := sess.Current()
		if terr != nil {
			writeError(w, terr)
			return
		}
		sel, err = outlier.SelectStatistical(tbl, req.Column, outlier.Method(req.Method), req.Multiplier)
	} else {
		sel, err = sess.Preview(req.Column, req.criteria())
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{
		Column:   req.Column,
		Removed:  sel.Removed,
		Rows:     sel.Table.Rows(),
		Criteria: sel.Criteria,
		Mask:     sel.Mask,
	})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	req, ok := decodeSelection(w, r)
	if !ok {
		return
	}

	var meta any
	var err error
	if req.statistical() {
		meta, err = sess.RemoveStatistical(req.Column, outlier.Method(req.Method), req.Multiplier)
	} else {
		meta, err = sess.Remove(req.Column, req.criteria())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	history, err := sess.History()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": history})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	seq, err := strconv.Atoi(chi.URLParam(r, "seq"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: APIError{
			Code: "BAD_REQUEST", Message: fmt.Sprintf("sequence number must be an integer: %v", err),
		}})
		return
	}
	meta, err := sess.Restore(seq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// columnsParam parses a comma-separated "columns" query value; nil means
// all columns.
func columnsParam(r *http.Request) []string {
	raw := r.URL.Query().Get("columns")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	tbl, err := sess.Current()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"columns": stats.Describe(tbl, columnsParam(r)),
	})
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	tbl, err := sess.Current()
	if err != nil {
		writeError(w, err)
		return
	}
	cols := columnsParam(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"matrix": stats.Correlations(tbl, cols),
		"tests":  stats.CorrelationTests(tbl, cols),
	})
}

func (s *Server) handleNormality(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	tbl, err := sess.Current()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": stats.NormalityTests(tbl, columnsParam(r)),
	})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	tbl, err := sess.Current()
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := stats.Trend(tbl, r.URL.Query().Get("column"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleOutlierBounds(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	tbl, err := sess.Current()
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	method := outlier.Method(q.Get("method"))
	if method == "" {
		method = outlier.MethodIQR
	}
	multiplier := 1.5
	if k := q.Get("k"); k != "" {
		multiplier, err = strconv.ParseFloat(k, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: APIError{
				Code: "BAD_REQUEST", Message: fmt.Sprintf("k must be a number: %v", err),
			}})
			return
		}
	}

	bounds, err := stats.Bounds(tbl, q.Get("column"), method, multiplier)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bounds)
}

// handleComparePeriods compares one column across two inclusive time
// windows given as RFC 3339 query parameters.
func (s *Server) handleComparePeriods(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	tbl, err := sess.Current()
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	parseBound := func(key string) (time.Time, bool) {
		ts, err := time.Parse(time.RFC3339, q.Get(key))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: APIError{
				Code:         "BAD_REQUEST",
				Message:      fmt.Sprintf("%s must be an RFC 3339 timestamp: %v", key, err),
				RecoveryHint: "Pass a_start, a_end, b_start and b_end, e.g. 2024-01-01T00:00:00Z",
			}})
			return time.Time{}, false
		}
		return ts, true
	}

	var periodA, periodB outlier.TimeRange
	if periodA.Start, ok = parseBound("a_start"); !ok {
		return
	}
	if periodA.End, ok = parseBound("a_end"); !ok {
		return
	}
	if periodB.Start, ok = parseBound("b_start"); !ok {
		return
	}
	if periodB.End, ok = parseBound("b_end"); !ok {
		return
	}

	result, err := stats.ComparePeriods(tbl, q.Get("column"), periodA, periodB)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCorrelationHeatmap(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	tbl, err := sess.Current()
	if err != nil {
		writeError(w, err)
		return
	}

	matrix := stats.Correlations(tbl, columnsParam(r))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := plot.CorrelationHeatmapHTML(w, matrix.Columns, matrix.Values); err != nil {
		writeError(w, err)
	}
}

func (s *Server) handleScatterHTML(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	tbl, err := sess.Current()
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := plot.ScatterHTML(w, tbl, r.URL.Query().Get("x"), r.URL.Query().Get("y")); err != nil {
		writeError(w, err)
	}
}

func (s *Server) handleTimeSeriesPNG(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	tbl, err := sess.Current()
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	column := q.Get("column")

	// An optional statistical method overlays its removal candidates.
	var mask []bool
	if method := q.Get("method"); method != "" {
		multiplier := 1.5
		if k := q.Get("k"); k != "" {
			if multiplier, err = strconv.ParseFloat(k, 64); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: APIError{
					Code: "BAD_REQUEST", Message: fmt.Sprintf("k must be a number: %v", err),
				}})
				return
			}
		}
		mask, err = outlier.Candidates(tbl, column, outlier.Method(method), multiplier)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	png, err := plot.TimeSeriesPNG(tbl, column, mask)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (s *Server) handleTimeSeriesHTML(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	tbl, err := sess.Current()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := plot.TimeSeriesHTML(w, tbl, columnsParam(r)); err != nil {
		s.logger.Error("interactive chart failed", "error", err)
	}
}

func (s *Server) handleHistogramPNG(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	tbl, err := sess.Current()
	if err != nil {
		writeError(w, err)
		return
	}

	bins := 0
	if b := r.URL.Query().Get("bins"); b != "" {
		if bins, err = strconv.Atoi(b); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: APIError{
				Code: "BAD_REQUEST", Message: fmt.Sprintf("bins must be an integer: %v", err),
			}})
			return
		}
	}

	png, err := plot.HistogramPNG(tbl, r.URL.Query().Get("column"), bins)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	tbl, err := sess.Current()
	if err != nil {
		writeError(w, err)
		return
	}
	history, err := sess.History()
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	err = report.Build(w, report.Input{
		Table:     tbl,
		History:   history,
		Summaries: stats.Describe(tbl, nil),
		Normality: stats.NormalityTests(tbl, nil),
	})
	if err != nil {
		s.logger.Error("report failed", "error", err)
	}
}
