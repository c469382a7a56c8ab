package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dietops/backend/internal/draft"
	"github.com/dietops/backend/internal/macros"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultItemQuantity = 100

// Draft operation names accepted by the operations endpoint.
const (
	opAddDay               = "add_day"
	opUpdateDay            = "update_day"
	opAddMeal              = "add_meal"
	opUpdateMeal           = "update_meal"
	opDeleteMeal           = "delete_meal"
	opReorderMeals         = "reorder_meals"
	opMoveMeal             = "move_meal"
	opDuplicateMeal        = "duplicate_meal"
	opAddItem              = "add_item"
	opUpdateItem           = "update_item"
	opRemoveItem           = "remove_item"
	opReorderItems         = "reorder_items"
	opSelectDay            = "select_day"
	opSelectMeal           = "select_meal"
	opEnterMealBuilder     = "enter_meal_builder"
	opExitMealBuilder      = "exit_meal_builder"
	opAutoEnterMealBuilder = "auto_enter_meal_builder"
)

var errUnknownOperation = errors.New("unknown draft operation")

type openDraftRequest struct {
	Force bool `json:"force"`
}

type draftOperationRequest struct {
	Type        string           `json:"type"`
	DayID       string           `json:"day_id"`
	MealID      string           `json:"meal_id"`
	ItemID      string           `json:"item_id"`
	TargetDayID string           `json:"target_day_id"`
	FoodID      string           `json:"food_id"`
	Name        string           `json:"name"`
	Index       *int             `json:"index"`
	Quantity    *float64         `json:"quantity"`
	Unit        string           `json:"unit"`
	OrderedIDs  []string         `json:"ordered_ids"`
	Day         *draft.DayPatch  `json:"day"`
	Meal        *draft.MealPatch `json:"meal"`
	Item        *draft.ItemPatch `json:"item"`
}

type mealSummary struct {
	MealID string        `json:"meal_id"`
	Totals macros.Totals `json:"totals"`
}

type daySummary struct {
	DayID    string          `json:"day_id"`
	Progress macros.Progress `json:"progress"`
	Meals    []mealSummary   `json:"meals"`
}

type draftStateResponse struct {
	draft.Snapshot
	Flushing bool          `json:"flushing"`
	Totals   macros.Totals `json:"totals"`
	Summary  []daySummary  `json:"day_summaries"`
}

type draftOperationResponse struct {
	Applied   bool               `json:"applied"`
	CreatedID string             `json:"created_id,omitempty"`
	State     draftStateResponse `json:"state"`
}

func newDraftState(session *draft.Session) draftStateResponse {
	snapshot := session.Snapshot()
	summary := make([]daySummary, 0, len(snapshot.Days))
	for _, day := range snapshot.Days {
		meals := make([]mealSummary, 0, len(day.Meals))
		for _, meal := range day.Meals {
			meals = append(meals, mealSummary{MealID: meal.ID, Totals: macros.ForMeal(meal)})
		}
		summary = append(summary, daySummary{DayID: day.ID, Progress: macros.DayProgress(day), Meals: meals})
	}
	return draftStateResponse{
		Snapshot: snapshot,
		Flushing: session.Flushing(),
		Totals:   macros.ForPlan(snapshot.Days),
		Summary:  summary,
	}
}

func (h *httpHandler) handleOpenDraft(c *gin.Context) {
	var request openDraftRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			h.respondInvalidRequest(c, err)
			return
		}
	}
	session, reused, err := h.drafts.Open(c.Request.Context(), ownerID(c), c.Param("planID"), request.Force)
	if err != nil {
		h.respondError(c, "failed to open draft", err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reused_dirty": reused, "state": newDraftState(session)})
}

func (h *httpHandler) handleGetDraft(c *gin.Context) {
	session, err := h.drafts.Get(ownerID(c), c.Param("planID"))
	if err != nil {
		h.respondError(c, "failed to load draft", err, nil)
		return
	}
	c.JSON(http.StatusOK, newDraftState(session))
}

func (h *httpHandler) handleCloseDraft(c *gin.Context) {
	if !h.drafts.Close(ownerID(c), c.Param("planID")) {
		h.respondError(c, "failed to close draft", draft.ErrSessionNotFound, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleDraftOperation(c *gin.Context) {
	session, err := h.drafts.Get(ownerID(c), c.Param("planID"))
	if err != nil {
		h.respondError(c, "failed to load draft", err, nil)
		return
	}
	var request draftOperationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondInvalidRequest(c, err)
		return
	}

	// Food resolution reads the catalogue and must not hold the writer lock.
	var operation func(store *draft.Store) (bool, string, error)
	if strings.TrimSpace(request.Type) == opAddItem {
		food, err := h.foods.Get(c.Request.Context(), request.FoodID)
		if err != nil {
			h.respondError(c, "failed to resolve food", err, nil)
			return
		}
		quantity := float64(defaultItemQuantity)
		if request.Quantity != nil {
			quantity = *request.Quantity
		}
		operation = func(store *draft.Store) (bool, string, error) {
			itemID, err := store.AddItem(request.MealID, food, quantity, request.Unit)
			return itemID != "", itemID, err
		}
	} else {
		operation, err = buildOperation(request)
		if err != nil {
			h.respondInvalidRequest(c, err)
			return
		}
	}

	var (
		applied   bool
		createdID string
	)
	err = session.Mutate(func(store *draft.Store) error {
		var opErr error
		applied, createdID, opErr = operation(store)
		return opErr
	})
	if err != nil {
		h.respondError(c, "draft operation rejected", err, gin.H{"operation": request.Type})
		return
	}
	if !applied {
		h.logger.Debug("draft operation had no effect",
			zap.String("operation", request.Type),
			zap.String("plan_id", c.Param("planID")))
	}
	c.JSON(http.StatusOK, draftOperationResponse{Applied: applied, CreatedID: createdID, State: newDraftState(session)})
}

func (h *httpHandler) handleFlushDraft(c *gin.Context) {
	owner := ownerID(c)
	planID := c.Param("planID")
	session, err := h.drafts.Get(owner, planID)
	if err != nil {
		h.respondError(c, "failed to load draft", err, nil)
		return
	}
	result, err := session.Flush(c.Request.Context(), h.plans)
	if err != nil {
		h.respondError(c, "draft flush failed", err, gin.H{"dirty": session.Dirty()})
		return
	}
	h.realtime.Publish(RealtimeMessage{
		UserID:    owner,
		EventType: RealtimeEventPlanSaved,
		PlanIDs:   []string{planID},
		Timestamp: h.now(),
	})
	c.JSON(http.StatusOK, result)
}

func buildOperation(request draftOperationRequest) (func(store *draft.Store) (bool, string, error), error) {
	switch strings.TrimSpace(request.Type) {
	case opAddDay:
		return func(store *draft.Store) (bool, string, error) {
			dayID, err := store.AddDay(request.Name)
			return dayID != "", dayID, err
		}, nil
	case opUpdateDay:
		if request.Day == nil {
			return nil, fmt.Errorf("%s requires a day patch", opUpdateDay)
		}
		return func(store *draft.Store) (bool, string, error) {
			applied, err := store.UpdateDay(request.DayID, *request.Day)
			return applied, "", err
		}, nil
	case opAddMeal:
		return func(store *draft.Store) (bool, string, error) {
			mealID, err := store.AddMeal(request.DayID, request.Name)
			return mealID != "", mealID, err
		}, nil
	case opUpdateMeal:
		if request.Meal == nil {
			return nil, fmt.Errorf("%s requires a meal patch", opUpdateMeal)
		}
		return func(store *draft.Store) (bool, string, error) {
			return store.UpdateMeal(request.MealID, *request.Meal), "", nil
		}, nil
	case opDeleteMeal:
		return func(store *draft.Store) (bool, string, error) {
			return store.DeleteMeal(request.MealID), "", nil
		}, nil
	case opReorderMeals:
		return func(store *draft.Store) (bool, string, error) {
			applied, err := store.ReorderMeals(request.DayID, request.OrderedIDs)
			return applied, "", err
		}, nil
	case opMoveMeal:
		return func(store *draft.Store) (bool, string, error) {
			return store.MoveMealToDay(request.MealID, request.TargetDayID), "", nil
		}, nil
	case opDuplicateMeal:
		return func(store *draft.Store) (bool, string, error) {
			var (
				mealID string
				err    error
			)
			if request.TargetDayID != "" {
				mealID, err = store.DuplicateMealToDay(request.MealID, request.TargetDayID)
			} else {
				mealID, err = store.DuplicateMeal(request.MealID)
			}
			return mealID != "", mealID, err
		}, nil
	case opUpdateItem:
		if request.Item == nil || request.Index == nil {
			return nil, fmt.Errorf("%s requires an index and an item patch", opUpdateItem)
		}
		return func(store *draft.Store) (bool, string, error) {
			applied, err := store.UpdateItem(request.MealID, *request.Index, *request.Item)
			return applied, "", err
		}, nil
	case opRemoveItem:
		return func(store *draft.Store) (bool, string, error) {
			return store.RemoveItem(request.MealID, request.ItemID), "", nil
		}, nil
	case opReorderItems:
		return func(store *draft.Store) (bool, string, error) {
			applied, err := store.ReorderItems(request.MealID, request.OrderedIDs)
			return applied, "", err
		}, nil
	case opSelectDay:
		return func(store *draft.Store) (bool, string, error) {
			return store.SelectDay(request.DayID), "", nil
		}, nil
	case opSelectMeal:
		return func(store *draft.Store) (bool, string, error) {
			return store.SelectMeal(request.MealID), "", nil
		}, nil
	case opEnterMealBuilder:
		return func(store *draft.Store) (bool, string, error) {
			return store.EnterMealBuilder(request.DayID), "", nil
		}, nil
	case opExitMealBuilder:
		return func(store *draft.Store) (bool, string, error) {
			store.ExitMealBuilder()
			return true, "", nil
		}, nil
	case opAutoEnterMealBuilder:
		return func(store *draft.Store) (bool, string, error) {
			return store.AutoEnterMealBuilder(), "", nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownOperation, request.Type)
	}
}
