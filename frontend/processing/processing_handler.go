package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"clamflow/frontend/shared/apperr"
	"clamflow/models"
)

// ReplayBatch is the offline replayer for processing uploads.
func (s *Service) ReplayBatch(ctx context.Context, payload json.RawMessage) error {
	var in SubmitInput
	if err := json.Unmarshal(payload, &in); err != nil {
		return apperr.Invalid("corrupt processing payload: " + err.Error())
	}
	_, err := s.Submit(ctx, in, time.Now())
	return err
}

func SubmitBatchCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in SubmitInput
		if err := apperr.Decode(r, &in); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		batch, err := svc.Submit(r.Context(), in, time.Now())
		if err != nil {
			if parked, ok := svc.Queue.Park(r.Context(), models.UploadProcessing, in, err); ok {
				svc.Notify.Info("Processing data saved offline and will sync automatically")
				render.Status(r, http.StatusAccepted)
				render.JSON(w, r, parked)
				return
			}
			svc.Notify.Error("Failed to save processing data")
			apperr.Write(w, r, svc.Log, err)
			return
		}
		msg := fmt.Sprintf("Processing recorded for lot %s, yield %.2f%%", batch.LotNumber, batch.YieldPercentage)
		if batch.YieldExceedsInput {
			svc.Notify.Info(msg + " exceeds the lot input weight")
		} else {
			svc.Notify.Success(msg)
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, batch)
	}
}

func ListBatchesQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batches, err := svc.ListBatches(r.Context(), r.URL.Query().Get("lot"))
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, batches)
	}
}

func NextBoxNumberQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := models.ParseProductType(r.URL.Query().Get("type"))
		if err != nil {
			apperr.Write(w, r, svc.Log, apperr.Invalid(err.Error(), "type"))
			return
		}
		n, err := svc.Boxes.Next(t)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, map[string]string{"boxNumber": n, "type": string(t)})
	}
}

func RecordShellWeightCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in ShellWeightInput
		if err := apperr.Decode(r, &in); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		entry, err := svc.RecordShellWeight(r.Context(), in, time.Now())
		if err != nil {
			svc.Notify.Error("Failed to record shell weight")
			apperr.Write(w, r, svc.Log, err)
			return
		}
		svc.Notify.Success(fmt.Sprintf("Shell weight of %.2f kg recorded", entry.Weight))
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, entry)
	}
}

func ListShellWeightsQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.ListShellWeights(r.Context())
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, entries)
	}
}

type verifyYieldRequest struct {
	RawWeight       float64 `json:"rawWeight"`
	ProcessedWeight float64 `json:"processedWeight"`
	ShellWeight     float64 `json:"shellWeight"`
}

func VerifyYieldQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in verifyYieldRequest
		if err := apperr.Decode(r, &in); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		check, err := VerifyYield(in.RawWeight, in.ProcessedWeight, in.ShellWeight)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, check)
	}
}
