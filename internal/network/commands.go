package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/MRamiBalles/factorysim/internal/domain/crafting"
	"github.com/MRamiBalles/factorysim/internal/domain/item"
	"github.com/MRamiBalles/factorysim/internal/domain/recipe"
	"github.com/MRamiBalles/factorysim/internal/domain/research"
	"github.com/MRamiBalles/factorysim/internal/engine"
)

// Player action types accepted over the websocket.
const (
	ActionAddCraftingTask    = "ADD_CRAFTING_TASK"
	ActionAddCraftingChain   = "ADD_CRAFTING_CHAIN"
	ActionCancelCraftingTask = "CANCEL_CRAFTING_TASK"
	ActionAddFacility        = "ADD_FACILITY"
	ActionRemoveFacility     = "REMOVE_FACILITY"
	ActionRefuelFacility     = "REFUEL_FACILITY"
	ActionStartResearch      = "START_RESEARCH"
	ActionQueueResearch      = "QUEUE_RESEARCH"
	ActionCancelResearch     = "CANCEL_RESEARCH"
)

// ErrInvalidAction marks malformed or unknown actions.
var ErrInvalidAction = errors.New("invalid action")

// PlayerAction represents an incoming command from a client.
type PlayerAction struct {
	Type      string          `json:"type" validate:"required"`
	RequestID string          `json:"request_id,omitempty"` // Echoed in the ack
	Payload   json.RawMessage `json:"payload"`
}

// CraftRequest enqueues a crafting task for a recipe, or for an item whose
// recipe the queue picks.
type CraftRequest struct {
	RecipeID recipe.ID `json:"recipe_id" validate:"required_without=ItemID"`
	ItemID   item.ID   `json:"item_id" validate:"required_without=RecipeID"`
	Quantity int       `json:"quantity" validate:"min=1"`
}

func (r CraftRequest) spec() crafting.Spec {
	if r.RecipeID != "" {
		return crafting.Spec{Kind: crafting.RecipeKind(r.RecipeID), Quantity: r.Quantity}
	}
	return crafting.Spec{Kind: crafting.ManualKind(r.ItemID), Quantity: r.Quantity}
}

type ChainRequest struct {
	ItemID   item.ID `json:"item_id" validate:"required"`
	Quantity int     `json:"quantity" validate:"min=1"`
}

type TaskRequest struct {
	TaskID string `json:"task_id" validate:"required"`
}

type InstanceRequest struct {
	InstanceID string `json:"instance_id" validate:"required"`
}

type RefuelRequest struct {
	InstanceID string  `json:"instance_id" validate:"required"`
	ItemID     item.ID `json:"item_id" validate:"required"`
	Quantity   int     `json:"quantity" validate:"min=1"`
}

type ResearchRequest struct {
	TechID research.ID `json:"tech_id" validate:"required"`
}

// Commands applies validated player requests to the engine. The websocket
// client and the REST API share it.
type Commands struct {
	engine   *engine.Engine
	validate *validator.Validate
}

func NewCommands(eng *engine.Engine) *Commands {
	return &Commands{engine: eng, validate: validator.New()}
}

// decode unmarshals raw into dst and validates it.
func (c *Commands) decode(raw []byte, dst interface{}) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	return c.check(dst)
}

func (c *Commands) check(v interface{}) error {
	if err := c.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	return nil
}

// Execute runs one action and returns its result.
func (c *Commands) Execute(action PlayerAction) (interface{}, error) {
	if err := c.check(action); err != nil {
		return nil, err
	}

	switch action.Type {
	case ActionAddCraftingTask:
		var req CraftRequest
		if err := c.decode(action.Payload, &req); err != nil {
			return nil, err
		}
		return c.engine.TryAddCraftingTask(req.spec())

	case ActionAddCraftingChain:
		var req ChainRequest
		if err := c.decode(action.Payload, &req); err != nil {
			return nil, err
		}
		chainID, err := c.engine.AddCraftingChain(req.ItemID, req.Quantity)
		if err != nil {
			return nil, err
		}
		return map[string]string{"chain_id": chainID}, nil

	case ActionCancelCraftingTask:
		var req TaskRequest
		if err := c.decode(action.Payload, &req); err != nil {
			return nil, err
		}
		if !c.engine.RemoveCraftingTask(req.TaskID) {
			return nil, fmt.Errorf("%w: %s", engine.ErrUnknownTask, req.TaskID)
		}
		return nil, nil

	case ActionAddFacility:
		var req engine.FacilitySpec
		if err := c.decode(action.Payload, &req); err != nil {
			return nil, err
		}
		return c.engine.AddFacility(req)

	case ActionRemoveFacility:
		var req InstanceRequest
		if err := c.decode(action.Payload, &req); err != nil {
			return nil, err
		}
		return nil, c.engine.RemoveFacility(req.InstanceID)

	case ActionRefuelFacility:
		var req RefuelRequest
		if err := c.decode(action.Payload, &req); err != nil {
			return nil, err
		}
		accepted, err := c.engine.TryRefuelFacility(req.InstanceID, req.ItemID, req.Quantity)
		if err != nil {
			return nil, err
		}
		return map[string]int{"accepted": accepted}, nil

	case ActionStartResearch, ActionQueueResearch:
		var req ResearchRequest
		if err := c.decode(action.Payload, &req); err != nil {
			return nil, err
		}
		if action.Type == ActionStartResearch {
			return nil, c.engine.StartResearch(req.TechID)
		}
		return nil, c.engine.QueueResearch(req.TechID)

	case ActionCancelResearch:
		c.engine.CancelResearch()
		return nil, nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidAction, action.Type)
}

// statusFor maps a command error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidAction), errors.Is(err, engine.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrUnknownTask), errors.Is(err, engine.ErrUnknownFacility),
		errors.Is(err, engine.ErrUnknownItem), errors.Is(err, engine.ErrUnknownRecipe):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrQueueFull), errors.Is(err, engine.ErrInsufficientMaterials),
		errors.Is(err, engine.ErrTechnologyUnavailable), errors.Is(err, engine.ErrFuelRejected):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
