package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"redfishd/internal/events"
	"redfishd/internal/redfish"
	"redfishd/internal/registry"
	"redfishd/internal/shared"
)

// subscriptionID restricts client supplied ids to one path segment.
var subscriptionID = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

type API struct {
	Tree      *redfish.Tree
	Registry  *registry.Registry
	Store     events.Store
	Publisher redfish.Publisher
	Logger    *zap.Logger
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, 2<<20))
}

func (a *API) log() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func (a *API) writeError(w http.ResponseWriter, code int, messageID string, args ...string) {
	writeJSON(w, code, a.Registry.GetErrorMessage(registry.BaseID, messageID, args...))
}

// writeTreeError maps resolution and dispatch errors onto status codes.
func (a *API) writeTreeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		missing *redfish.ResourceDoesNotExistError
		badArg  *redfish.PropertyValueNotInListError
		failed  *redfish.ActionFailedError
	)
	switch {
	case errors.As(err, &missing):
		a.writeError(w, 404, "ResourceDoesNotExist", missing.Segment)
	case errors.As(err, &badArg):
		a.writeError(w, 400, "PropertyValueNotInList", badArg.Value, badArg.Property)
	case errors.As(err, &failed):
		a.log().Error("action failed", zap.String("path", r.URL.Path), zap.Error(err))
		a.writeError(w, 500, "InternalError")
	default:
		a.log().Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		a.writeError(w, 500, "InternalError")
	}
}

// Get serves any resource in the tree.
func (a *API) Get(w http.ResponseWriter, r *http.Request) {
	attrs, err := a.Tree.Get(r.Context(), redfish.SplitPath(r.URL.Path))
	if err != nil {
		a.writeTreeError(w, r, err)
		return
	}
	writeJSON(w, 200, attrs)
}

func (a *API) Metadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, a.Tree.Metadata())
}

// RegistryDocument serves the raw registry file a MessageRegistryFile
// resource points at.
func (a *API) RegistryDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	doc, ok := a.Registry.Document(id)
	if !ok || vars["file"] != id+".json" {
		a.writeError(w, 404, "ResourceDoesNotExist", vars["file"])
		return
	}
	writeJSON(w, 200, doc)
}

// Action handles POST .../Actions/<namespace>.<action>.
func (a *API) Action(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		a.writeError(w, 400, "MalformedJSON")
		return
	}
	args := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			a.writeError(w, 400, "MalformedJSON")
			return
		}
	}
	if err := a.Tree.InvokePath(r.Context(), redfish.SplitPath(r.URL.Path), args); err != nil {
		a.writeTreeError(w, r, err)
		return
	}
	w.WriteHeader(204)
}

func (a *API) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		a.writeError(w, 400, "MalformedJSON")
		return
	}
	var req shared.SubscriptionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		a.writeError(w, 400, "MalformedJSON")
		return
	}
	if req.Destination == "" {
		a.writeError(w, 400, "PropertyMissing", "Destination")
		return
	}
	if err := events.ValidateEndpoint(req.Destination); err != nil {
		a.writeError(w, 400, "PropertyValueFormatError", req.Destination, "Destination")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	} else if !subscriptionID.MatchString(req.ID) || req.ID == "." || req.ID == ".." {
		a.writeError(w, 400, "PropertyValueFormatError", req.ID, "Id")
		return
	}
	if req.Name == "" {
		req.Name = "Event Subscription " + req.ID
	}

	subs, err := a.Store.Snapshot()
	if err != nil {
		a.log().Error("subscription snapshot failed", zap.Error(err))
		a.writeError(w, 500, "InternalError")
		return
	}
	if other, ok := events.FindByID(subs, req.ID); ok && other.Endpoint != req.Destination {
		a.writeError(w, 409, "ResourceAlreadyExists")
		return
	}
	if err := a.Store.Create(req.Destination, req.ID, req.Name, req.Context); err != nil {
		a.log().Error("create subscription failed", zap.Error(err))
		a.writeError(w, 500, "InternalError")
		return
	}

	sub := events.Subscription{
		Endpoint:      req.Destination,
		DestinationID: req.ID,
		Name:          req.Name,
		Context:       req.Context,
	}
	a.log().Info("subscription created",
		zap.String("id", sub.DestinationID), zap.String("destination", sub.Endpoint))
	a.Publisher.PublishAsync(events.NewEventRecord(events.ResourceAdded, registry.BaseID+".ResourceCreated"))

	w.Header().Set("Location", a.Tree.Subscriptions().Path()+"/"+sub.DestinationID)
	writeJSON(w, 201, a.Tree.EventDestination(sub))
}

func (a *API) GetSubscription(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sub, ok, err := a.findSubscription(id)
	if err != nil {
		a.writeError(w, 500, "InternalError")
		return
	}
	if !ok {
		a.writeError(w, 404, "ResourceDoesNotExist", id)
		return
	}
	writeJSON(w, 200, a.Tree.EventDestination(sub))
}

func (a *API) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sub, ok, err := a.findSubscription(id)
	if err != nil {
		a.writeError(w, 500, "InternalError")
		return
	}
	if !ok {
		a.writeError(w, 404, "ResourceDoesNotExist", id)
		return
	}
	if err := a.Store.Remove(sub.Endpoint); err != nil {
		if errors.Is(err, events.ErrSubscriptionNotFound) {
			a.writeError(w, 404, "ResourceDoesNotExist", id)
			return
		}
		a.log().Error("remove subscription failed", zap.Error(err))
		a.writeError(w, 500, "InternalError")
		return
	}
	a.log().Info("subscription removed",
		zap.String("id", sub.DestinationID), zap.String("destination", sub.Endpoint))
	a.Publisher.PublishAsync(events.NewEventRecord(events.ResourceRemoved, registry.BaseID+".ResourceRemoved"))
	w.WriteHeader(204)
}

func (a *API) findSubscription(id string) (events.Subscription, bool, error) {
	subs, err := a.Store.Snapshot()
	if err != nil {
		a.log().Error("subscription snapshot failed", zap.Error(err))
		return events.Subscription{}, false, err
	}
	sub, ok := events.FindByID(subs, id)
	return sub, ok, nil
}

// NotFound answers unrouted requests with the registry envelope.
func (a *API) NotFound(w http.ResponseWriter, r *http.Request) {
	segs := redfish.SplitPath(r.URL.Path)
	seg := ""
	if len(segs) > 0 {
		seg = segs[len(segs)-1]
	}
	a.writeError(w, 404, "ResourceDoesNotExist", seg)
}

func (a *API) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	a.writeError(w, 405, "ActionNotSupported", r.Method)
}
