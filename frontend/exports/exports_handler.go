package exports

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"clamflow/frontend/shared/apperr"
	sessioncontext "clamflow/frontend/shared/context"
)

// ExportHandler streams /api/exports/{kind} as CSV, or as XLSX with ?format=xlsx.
func ExportHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := ParseKind(chi.URLParam(r, "kind"))
		if !ok {
			apperr.Write(w, r, svc.Log, apperr.NotFound("export", chi.URLParam(r, "kind")))
			return
		}
		format := Format(r.URL.Query().Get("format"))
		if format == "" {
			format = FormatCSV
		}
		if format != FormatCSV && format != FormatXLSX {
			apperr.Write(w, r, svc.Log, apperr.Invalid("format must be csv or xlsx", "format"))
			return
		}

		table, err := svc.Load(r.Context(), kind)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}

		now := time.Now()
		filename := fmt.Sprintf("%s-%s.%s", kind, now.Format("20060102"), format)
		w.Header().Set("Content-Disposition", "attachment; filename="+filename)
		switch format {
		case FormatXLSX:
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			err = WriteXLSX(w, string(kind), table)
		default:
			w.Header().Set("Content-Type", "text/csv")
			err = WriteCSV(w, table)
		}
		if err != nil {
			svc.Log.Error("write export", zap.String("kind", string(kind)), zap.String("format", string(format)), zap.Error(err))
			return
		}

		// The file is already sent; a lost run record is only logged.
		operatorID := sessioncontext.OperatorID(r.Context())
		if err := svc.recordRun(context.WithoutCancel(r.Context()), operatorID, kind, format, len(table.Rows), now); err != nil {
			svc.Log.Warn("record export run failed", zap.String("kind", string(kind)), zap.Error(err))
		}
	}
}

func ListExportRunsQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		runs, err := svc.ListRuns(r.Context(), limit)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, runs)
	}
}
