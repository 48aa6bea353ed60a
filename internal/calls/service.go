package calls

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"call-insights/internal/apperr"
	"call-insights/internal/audit"
	"call-insights/internal/auth"
	"call-insights/internal/pagination"
	"call-insights/internal/storage"
	"call-insights/pkg/b64u"
	"call-insights/pkg/logger"

	"github.com/google/uuid"
)

const (
	CodeTranscriptionUpload    = "TRANSCRIBATION_UPLOAD_ERROR"
	MessageTranscriptionUpload = "Ошибка при загрузке файла с транскрибацией в хранилище."
)

// Service implements call ingest, listing, analysis upload and transcription access.
type Service struct {
	store   Store
	objects storage.ObjectStore
	links   *auth.LinkSigner
	audit   *audit.Service
	now     func() time.Time
}

// NewService wires the call store with its collaborators. objects, links and audit may be nil;
// the features depending on them then report unavailable.
func NewService(store Store, objects storage.ObjectStore, links *auth.LinkSigner, auditSvc *audit.Service) *Service {
	return &Service{store: store, objects: objects, links: links, audit: auditSvc, now: time.Now}
}

// fail logs err with the operation context and converts it into a domain error.
func (s *Service) fail(ctx context.Context, op string, err error, attrs ...any) error {
	var out error
	switch {
	case errors.Is(err, ErrNotFound):
		out = apperr.NotFound(err)
	case errors.Is(err, ErrAlreadyAnalyzed), errors.Is(err, ErrDuplicate):
		out = apperr.Conflict(err)
	default:
		out = apperr.FromStore(err)
	}
	l := logger.Op(ctx, op, "call").With(attrs...)
	if ae, _ := apperr.As(out); ae.Status() >= 500 {
		l.Error("call operation failed", "err", err)
	} else {
		l.Info("call operation rejected", "err", err)
	}
	return out
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Call, error) {
	c := Call{
		ID:           uuid.New(),
		CallID:       req.CallID,
		ClientPhone:  req.ClientPhone,
		Datetime:     req.CallDate.UTC(),
		Direction:    req.CallType,
		Duration:     req.CallDuration,
		ManagerName:  req.ManagerName,
		ManagerPhone: req.ManagerPhone,
		OrgID:        req.OrgID,
	}

	if req.Transcription != nil {
		key, err := s.uploadTranscription(ctx, req.CallID, *req.Transcription)
		if err != nil {
			return Call{}, err
		}
		c.TranscriptionKey = &key
	}

	created, err := s.store.Create(ctx, c)
	if err != nil {
		if c.TranscriptionKey != nil {
			s.discard(ctx, *c.TranscriptionKey)
		}
		return Call{}, s.fail(ctx, "calls.create", err, "call_id", req.CallID)
	}

	s.audit.Record(ctx, audit.Event{
		Type:     audit.EventCallCreated,
		OrgID:    created.OrgID,
		TargetID: created.ID.String(),
		Metadata: audit.Meta(map[string]any{"call_id": created.CallID}),
	})
	return created, nil
}

func uploadError(err error) error {
	return apperr.BadRequest(CodeTranscriptionUpload, MessageTranscriptionUpload, err)
}

func (s *Service) uploadTranscription(ctx context.Context, callID int64, t Transcription) (string, error) {
	l := logger.Op(ctx, "calls.upload_transcription", "call").With("call_id", callID)
	if s.objects == nil {
		return "", uploadError(errors.New("object store not configured"))
	}
	key := storage.Key(fmt.Sprintf("calls/%d", callID), t.Name)
	if key == "" {
		return "", uploadError(fmt.Errorf("invalid file name %q", t.Name))
	}
	body, err := base64.StdEncoding.DecodeString(b64u.FromBase64URL(t.Content))
	if err != nil {
		l.Info("transcription content is not base64", "err", err)
		return "", uploadError(err)
	}
	contentType := storage.ContentTypeFor(key)
	if t.MimeType != nil && *t.MimeType != "" {
		contentType = *t.MimeType
	}
	if err := s.objects.Upload(ctx, key, bytes.NewReader(body), contentType); err != nil {
		l.Warn("transcription upload failed", "key", key, "err", err)
		return "", uploadError(err)
	}
	return key, nil
}

// discard removes an uploaded object whose call row was never written.
func (s *Service) discard(ctx context.Context, key string) {
	if err := s.objects.Delete(context.WithoutCancel(ctx), key); err != nil {
		logger.Op(ctx, "calls.discard_transcription", "call").Warn("orphaned transcription left in store", "key", key, "err", err)
	}
}

func (s *Service) List(ctx context.Context, orgID int64, sort Sort, page pagination.Page) ([]Call, int, error) {
	items, total, err := s.store.List(ctx, orgID, sort, page)
	if err != nil {
		return nil, 0, s.fail(ctx, "calls.list", err, "org_id", orgID)
	}
	return items, total, nil
}

// UploadInfo folds one analysis into the store as a single unit of work: the call is
// locked and marked analyzed, its child records are inserted, the caller's client
// aggregate counts every observed attribute once, and a relative is recorded when
// anything about them was determined. Nothing persists unless all of it does.
func (s *Service) UploadInfo(ctx context.Context, req UploadInfoRequest) (Call, error) {
	result := req.Info.Result
	analysis := result.Analysis()
	details := result.Details()

	var updated Call
	err := s.store.Aggregate(ctx, func(ctx context.Context, tx AnalysisTx) error {
		call, err := tx.LockByCallID(ctx, req.CallID)
		if err != nil {
			return err
		}
		if call.Status() == StatusAnalyzed {
			return ErrAlreadyAnalyzed
		}

		at := s.now().UTC()
		if err := tx.ApplyAnalysis(ctx, call.ID, analysis, at); err != nil {
			return err
		}
		if err := tx.InsertDetails(ctx, call.ID, details); err != nil {
			return err
		}

		w := tx.Clients()
		clientID, err := w.ResolveOrCreate(ctx, call.OrgID, call.ClientPhone)
		if err != nil {
			return fmt.Errorf("resolve client: %w", err)
		}
		for _, o := range details.ClientInfo.Observations() {
			if err := w.MergeIncrement(ctx, clientID, o.Attribute, o.Value); err != nil {
				return fmt.Errorf("merge %s: %w", o.Attribute, err)
			}
		}
		if rel := details.ClientInfo.RelativeInfo.relative(); rel.Determined() {
			if err := w.InsertRelative(ctx, clientID, rel); err != nil {
				return fmt.Errorf("insert relative: %w", err)
			}
		}

		call.Analysis = analysis
		call.AnalyzedAt = &at
		call.UpdatedAt = at
		ci, in, si := details.ClientInfo, details.Insights, details.Satisfaction
		call.ClientInfo, call.ClientInsightsInfo, call.SatisfactionInfo = &ci, &in, &si
		updated = call
		return nil
	})
	if err != nil {
		return Call{}, s.fail(ctx, "calls.upload_info", err, "call_id", req.CallID)
	}

	s.audit.Record(ctx, audit.Event{
		Type:     audit.EventCallAnalyzed,
		OrgID:    updated.OrgID,
		TargetID: updated.ID.String(),
		Metadata: audit.Meta(map[string]any{"call_id": updated.CallID, "name": req.Info.Name}),
	})
	return updated, nil
}

func (s *Service) transcriptionKey(ctx context.Context, orgID int64, id uuid.UUID) (string, error) {
	c, err := s.store.Get(ctx, orgID, id)
	if err != nil {
		return "", s.fail(ctx, "calls.transcription", err, "id", id)
	}
	if c.TranscriptionKey == nil {
		return "", apperr.NotFound(errors.New("call has no transcription"))
	}
	return *c.TranscriptionKey, nil
}

// Transcription opens the stored transcription of a call. A nil rng reads the whole file.
func (s *Service) Transcription(ctx context.Context, orgID int64, id uuid.UUID, rng *storage.ByteRange) (*storage.Download, error) {
	if s.objects == nil {
		return nil, apperr.Unavailable(errors.New("object store not configured"))
	}
	key, err := s.transcriptionKey(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	return s.objects.Download(ctx, key, rng)
}

// Link is a signed, short-lived grant to download one transcription without credentials.
type Link struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Service) TranscriptionLink(ctx context.Context, orgID int64, id uuid.UUID) (Link, error) {
	if s.links == nil {
		return Link{}, apperr.Unavailable(errors.New("link signer not configured"))
	}
	if _, err := s.transcriptionKey(ctx, orgID, id); err != nil {
		return Link{}, err
	}
	tok, exp, err := s.links.Issue(s.now(), orgID, id.String(), auth.PurposeTranscription)
	if err != nil {
		logger.Op(ctx, "calls.transcription_link", "call").Error("sign link failed", "id", id, "err", err)
		return Link{}, apperr.Internal(err)
	}
	return Link{Token: tok, ExpiresAt: exp}, nil
}
