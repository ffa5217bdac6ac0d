package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jaekwang-park/todo-sync/internal/model"
	"github.com/jaekwang-park/todo-sync/internal/repository"
	"github.com/jaekwang-park/todo-sync/internal/storage"
	"github.com/jaekwang-park/todo-sync/internal/store"
)

// ItemStore is the part of store.Store the item service uses.
type ItemStore interface {
	Items() []model.Item
	Find(ref string) (model.Item, bool)
	Dispatch(action store.Action)
	Subscribe(l store.Listener) (unsubscribe func())
}

// SessionEstablisher obtains the anonymous identity remote calls run under.
type SessionEstablisher interface {
	Establish(ctx context.Context) (string, error)
}

type UpdateItemInput struct {
	Title       *string
	Description *string
	Deadline    *string // YYYY-MM-DD
	Done        *bool
}

type AttachInput struct {
	Name        string
	Body        io.Reader
	Size        int64
	ContentType string
}

type ItemService struct {
	store   ItemStore
	records repository.RecordRepository
	blobs   storage.Client
	session SessionEstablisher
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

type ItemServiceOption func(*ItemService)

// WithClock sets the clock used for default deadlines.
func WithClock(now func() time.Time) ItemServiceOption {
	return func(s *ItemService) { s.now = now }
}

// WithIDGenerator sets the generator for local item IDs.
func WithIDGenerator(newID func() string) ItemServiceOption {
	return func(s *ItemService) { s.newID = newID }
}

func NewItemService(
	st ItemStore,
	records repository.RecordRepository,
	blobs storage.Client,
	session SessionEstablisher,
	logger *slog.Logger,
	opts ...ItemServiceOption,
) *ItemService {
	s := &ItemService{
		store:   st,
		records: records,
		blobs:   blobs,
		session: session,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bootstrap establishes the session and loads every remote record into the
// store, replacing its contents.
func (s *ItemService) Bootstrap(ctx context.Context) error {
	identity, err := s.session.Establish(ctx)
	if err != nil {
		return fmt.Errorf("failed to establish session: %w", err)
	}

	records, err := s.records.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch items: %w", err)
	}

	items := make([]model.Item, 0, len(records))
	for _, rec := range records {
		items = append(items, rec.Item())
	}
	s.store.Dispatch(store.Fetched{Items: items})
	s.logger.Info("items fetched", "identity", identity, "count", len(items))
	return nil
}

// List returns the visible items in display order.
func (s *ItemService) List() []model.Item {
	return visible(s.store.Items())
}

func visible(all []model.Item) []model.Item {
	items := make([]model.Item, 0, len(all))
	for _, it := range all {
		if it.State.Kind == model.SyncPendingDelete {
			continue
		}
		items = append(items, it)
	}
	return items
}

// Watch calls fn with the visible items after every change until the
// returned function is called. fn runs while the store is locked and must
// not block.
func (s *ItemService) Watch(fn func(items []model.Item)) (cancel func()) {
	return s.store.Subscribe(func(items []model.Item) {
		fn(visible(items))
	})
}

func (s *ItemService) Get(ref string) (model.Item, error) {
	return s.find(ref)
}

// Add appends a default item and returns it.
func (s *ItemService) Add() model.Item {
	localID := s.newID()
	s.store.Dispatch(store.Added{LocalID: localID, Today: model.DateOf(s.now())})

	item, _ := s.store.Find(localID)
	return item
}

// Update edits an item. Empty title or description keep the previous value
// and a deadline that does not parse is ignored. When nothing is left to
// change the item is returned as is.
func (s *ItemService) Update(ref string, input UpdateItemInput) (model.Item, error) {
	if input.Title == nil && input.Description == nil && input.Deadline == nil && input.Done == nil {
		return model.Item{}, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}

	item, err := s.find(ref)
	if err != nil {
		return model.Item{}, err
	}

	var changes model.Changes
	if input.Title != nil && strings.TrimSpace(*input.Title) != "" {
		title := *input.Title
		changes.Title = &title
	}
	if input.Description != nil && strings.TrimSpace(*input.Description) != "" {
		description := *input.Description
		changes.Description = &description
	}
	if input.Deadline != nil {
		deadline, err := model.ParseDate(*input.Deadline)
		if err != nil {
			s.logger.Debug("ignoring deadline", "item", ref, "error", err)
		} else {
			changes.Deadline = &deadline
		}
	}
	if input.Done != nil {
		done := *input.Done
		changes.Done = &done
	}

	if changes.IsEmpty() {
		return item, nil
	}

	s.store.Dispatch(store.Updated{Ref: ref, Changes: changes})
	return s.find(ref)
}

func (s *ItemService) ToggleDone(ref string) (model.Item, error) {
	item, err := s.find(ref)
	if err != nil {
		return model.Item{}, err
	}

	done := !item.Done
	s.store.Dispatch(store.Updated{Ref: ref, Changes: model.Changes{Done: &done}})
	return s.find(ref)
}

func (s *ItemService) Delete(ref string) error {
	if _, err := s.find(ref); err != nil {
		return err
	}
	s.store.Dispatch(store.Deleted{Ref: ref})
	return nil
}

// Attach uploads a file under the item's namespace and records its name.
// The item must have a remote ID.
func (s *ItemService) Attach(ctx context.Context, ref string, input AttachInput) (model.Item, error) {
	if err := storage.ValidateName(input.Name); err != nil {
		return model.Item{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	item, err := s.find(ref)
	if err != nil {
		return model.Item{}, err
	}
	if item.ID == "" {
		return model.Item{}, ErrNotSynced
	}

	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.blobs.Upload(ctx, item.ID, input.Name, input.Body, input.Size, contentType); err != nil {
		return model.Item{}, fmt.Errorf("failed to upload attachment: %w", err)
	}

	// The list may have changed during the upload.
	item, err = s.find(item.ID)
	if err != nil {
		return model.Item{}, err
	}
	if item.HasAttachment(input.Name) {
		return item, nil
	}

	attachments := append(append([]string{}, item.Attachments...), input.Name)
	s.store.Dispatch(store.Updated{Ref: item.ID, Changes: model.Changes{Attachments: &attachments}})
	return s.find(item.ID)
}

// Detach deletes the blob and removes its name from the item.
func (s *ItemService) Detach(ctx context.Context, ref, name string) (model.Item, error) {
	item, err := s.find(ref)
	if err != nil {
		return model.Item{}, err
	}
	if !item.HasAttachment(name) {
		return model.Item{}, fmt.Errorf("%w: attachment %s", ErrNotFound, name)
	}
	if item.ID == "" {
		return model.Item{}, ErrNotSynced
	}

	err = s.blobs.Delete(ctx, storage.Object{Namespace: item.ID, Name: name})
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return model.Item{}, fmt.Errorf("failed to delete attachment: %w", err)
	}

	item, err = s.find(item.ID)
	if err != nil {
		return model.Item{}, err
	}
	attachments := make([]string, 0, len(item.Attachments))
	for _, a := range item.Attachments {
		if a != name {
			attachments = append(attachments, a)
		}
	}
	s.store.Dispatch(store.Updated{Ref: item.ID, Changes: model.Changes{Attachments: &attachments}})
	return s.find(item.ID)
}

func (s *ItemService) DownloadURL(ctx context.Context, ref, name string) (string, error) {
	item, err := s.find(ref)
	if err != nil {
		return "", err
	}
	if !item.HasAttachment(name) {
		return "", fmt.Errorf("%w: attachment %s", ErrNotFound, name)
	}
	if item.ID == "" {
		return "", ErrNotSynced
	}

	url, err := s.blobs.DownloadURL(ctx, item.ID, name)
	if err != nil {
		return "", fmt.Errorf("failed to create download url: %w", err)
	}
	return url, nil
}

// find returns the live item addressed by ref. Items pending deletion are
// treated as gone.
func (s *ItemService) find(ref string) (model.Item, error) {
	item, ok := s.store.Find(ref)
	if !ok || item.State.Kind == model.SyncPendingDelete {
		return model.Item{}, ErrNotFound
	}
	return item, nil
}
