package admin

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"clamflow/frontend/login"
	"clamflow/frontend/shared/apperr"
	sessioncontext "clamflow/frontend/shared/context"
	"clamflow/models"
)

func parseIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("invalid id", "id")
	}
	return id, nil
}

func ListSuppliersQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		suppliers, err := svc.ListSuppliers(r.Context())
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, suppliers)
	}
}

func CreateSupplierCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in SupplierInput
		if err := apperr.Decode(r, &in); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		sup, err := svc.CreateSupplier(r.Context(), sessioncontext.OperatorID(r.Context()), in)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, sup)
	}
}

func UpdateSupplierCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseIDParam(r)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		var in SupplierInput
		if err := apperr.Decode(r, &in); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		sup, err := svc.UpdateSupplier(r.Context(), sessioncontext.OperatorID(r.Context()), id, in)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, sup)
	}
}

func DeleteSupplierCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseIDParam(r)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		if err := svc.DeleteSupplier(r.Context(), sessioncontext.OperatorID(r.Context()), id); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ListGradesQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var productType models.ProductType
		if v := r.URL.Query().Get("type"); v != "" {
			t, err := models.ParseProductType(v)
			if err != nil {
				apperr.Write(w, r, svc.Log, apperr.Invalid(err.Error(), "type"))
				return
			}
			productType = t
		}
		grades, err := svc.ListGrades(r.Context(), productType)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, grades)
	}
}

func CreateGradeCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in GradeInput
		if err := apperr.Decode(r, &in); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		grade, err := svc.CreateGrade(r.Context(), sessioncontext.OperatorID(r.Context()), in)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, grade)
	}
}

func DeleteGradeCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseIDParam(r)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		if err := svc.DeleteGrade(r.Context(), sessioncontext.OperatorID(r.Context()), id); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ListOperatorsQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ops, err := login.ListOperators(r.Context(), svc.DB)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, ops)
	}
}

// UpsertOperatorCommandHandler creates an operator or resets its role and password.
func UpsertOperatorCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in OperatorInput
		if err := apperr.Decode(r, &in); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		if err := login.UpsertOperator(r.Context(), svc.DB, in.Username, in.Role, in.Password); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ImportSuppliersCommandHandler reads a multipart "file" upload; names
// ending in .xlsx are read as workbooks, anything else as CSV.
func ImportSuppliersCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			apperr.Write(w, r, svc.Log, apperr.Invalid("invalid upload", "file"))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			apperr.Write(w, r, svc.Log, apperr.Invalid("file is required", "file"))
			return
		}
		defer file.Close()

		xlsx := strings.HasSuffix(strings.ToLower(header.Filename), ".xlsx")
		summary, err := svc.ImportSuppliers(r.Context(), sessioncontext.OperatorID(r.Context()), file, xlsx)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, summary)
	}
}
