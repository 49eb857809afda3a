package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"seekbot/internal/session"
	"seekbot/internal/storage"
	kit "seekbot/internal/transport"
	"seekbot/internal/upstream"
	"seekbot/pkg/logx"
	"seekbot/pkg/tgtext"
)

func (s *Service) onStart(ctx context.Context, m *kit.Message) {
	if !s.ensureSubscribed(ctx, m) {
		return
	}
	s.reply(ctx, m.ChatID, welcomeText)
}

func (s *Service) onCancel(ctx context.Context, m *kit.Message) {
	switch s.d.Hub.Cancel(session.UserID(m.FromID)) {
	case session.CancelAccepted:
		s.reply(ctx, m.ChatID, cancelDoneText)
	case session.NoActiveTask:
		s.reply(ctx, m.ChatID, nothingToCancel)
	}
}

func (s *Service) onRequest(ctx context.Context, m *kit.Message) {
	userID := session.UserID(m.FromID)

	// Fast path for racing duplicates: the user already has feedback from
	// their in-flight request, so drop silently rather than spawn anything.
	if s.d.Store.Busy(userID) {
		s.d.Stats.Dropped()
		s.d.Log.Debug("duplicate event dropped (user busy)", logx.Int64("user", m.FromID))
		return
	}

	if strings.TrimSpace(m.Text) == "" {
		s.reply(ctx, m.ChatID, emptyInputText)
		return
	}
	if !s.ensureSubscribed(ctx, m) {
		return
	}

	s.registerFirstContact(m)

	text := m.Text
	chatID := m.ChatID
	adm, task := s.d.Hub.Begin(userID, func(taskCtx context.Context) error {
		return s.runRequest(taskCtx, chatID, userID, text)
	})

	switch adm.Decision {
	case session.Admitted:
		s.d.Stats.Admitted()
		_ = task // feedback comes from the task itself
	case session.RejectedBusy:
		s.d.Stats.RejectedBusy()
		s.reply(ctx, chatID, busyText)
	case session.RejectedCooldown:
		s.d.Stats.RejectedCooldown()
		s.reply(ctx, chatID, cooldownText(int(adm.Remaining/time.Second)))
	}
}

// runRequest is the body of one admitted task. taskCtx is the cancellable
// task context; cancellation is observed at the upstream call and outbound
// sends. Every terminal path records the outcome.
func (s *Service) runRequest(taskCtx context.Context, chatID int64, userID session.UserID, text string) (err error) {
	started := time.Now()
	taskID := session.TaskIDFromContext(taskCtx)
	to := kit.ChatTarget{ChatID: chatID}

	waitRef, waitErr := s.d.Adapter.SendText(taskCtx, to, workingText, &kit.SendOptions{ParseMode: modeMarkdown})
	hasWait := waitErr == nil

	// Unexpected failures must still produce a user-visible message; the
	// hub releases the busy slot regardless.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("request panicked: %v", r)
			s.failTask(chatID, userID, waitRef, hasWait, unexpectedErrText)
			s.d.Stats.Failed()
			s.audit(taskID, userID, "failed", started, err)
		}
	}()

	out, cerr := s.d.Client.Complete(taskCtx, text)

	if taskCtx.Err() != nil || errors.Is(cerr, context.Canceled) {
		// Cancelled: acknowledge on the wait message. The task context is
		// dead, so use a fresh one for the edit.
		if hasWait {
			ectx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = s.d.Adapter.EditText(ectx, waitRef, cancelledTaskText, &kit.SendOptions{ParseMode: modeMarkdown})
			cancel()
		}
		s.d.Stats.Cancelled()
		s.audit(taskID, userID, "cancelled", started, nil)
		return context.Canceled
	}

	if cerr != nil {
		s.failTask(chatID, userID, waitRef, hasWait, errorText(cerr))
		s.d.Stats.Failed()
		s.audit(taskID, userID, "failed", started, cerr)
		return cerr
	}

	formatted := tgtext.Format(out)
	chunks := tgtext.Split(formatted, s.options().MaxChunkLen)

	if hasWait {
		_ = s.d.Adapter.DeleteText(taskCtx, waitRef)
	}
	for _, chunk := range chunks {
		if taskCtx.Err() != nil {
			s.d.Stats.Cancelled()
			s.audit(taskID, userID, "cancelled", started, nil)
			return taskCtx.Err()
		}
		if _, serr := s.d.Adapter.SendText(taskCtx, to, chunk, &kit.SendOptions{ParseMode: modeMarkdown}); serr != nil {
			s.d.Log.Warn("chunk send failed", logx.Int64("user", int64(userID)), logx.Err(serr))
		}
	}

	s.d.Stats.Completed()
	s.audit(taskID, userID, "completed", started, nil)
	return nil
}

// failTask surfaces a terminal error to the user, preferring an edit of the
// wait message over a fresh reply.
func (s *Service) failTask(chatID int64, userID session.UserID, waitRef kit.MessageRef, hasWait bool, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if hasWait {
		if err := s.d.Adapter.EditText(ctx, waitRef, text, &kit.SendOptions{ParseMode: modeMarkdown}); err == nil {
			return
		}
	}
	s.reply(ctx, chatID, text)
}

// errorText renders the terminal upstream error for the user.
func errorText(err error) string {
	var exhausted *upstream.ExhaustedError
	if errors.As(err, &exhausted) {
		err = exhausted.Last
	}

	var api *upstream.APIError
	switch {
	case errors.As(err, &api):
		msg := api.Message
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Sprintf("*❌ Upstream error (code %d): %s*", api.Status, msg)
	case errors.Is(err, upstream.ErrTimeout):
		return "*⌛ Timed out. The server is taking longer than usual.*"
	case errors.Is(err, upstream.ErrEmptyInput):
		return emptyInputText
	case err != nil:
		return fmt.Sprintf("*⚠️ Unexpected error: %v*", err)
	default:
		return "*❌ All attempts to reach the server failed.*"
	}
}

// ensureSubscribed enforces the required-channel membership. Check errors
// count as not subscribed.
func (s *Service) ensureSubscribed(ctx context.Context, m *kit.Message) bool {
	opts := s.options()
	if opts.Channel == "" || s.d.Members == nil {
		return true
	}
	ok, err := s.d.Members.IsChatMember(ctx, opts.Channel, m.FromID)
	if err != nil {
		s.d.Log.Warn("subscription check failed", logx.Int64("user", m.FromID), logx.Err(err))
		ok = false
	}
	if ok {
		return true
	}
	_, _ = s.d.Adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID}, subscriptionPromptText(m.FirstName), &kit.SendOptions{
		ParseMode:   modeMarkdown,
		ReplyMarkup: subscriptionMarkup(opts.Channel),
	})
	return false
}

// registerFirstContact records the profile once per user and notifies the
// operator exactly once.
func (s *Service) registerFirstContact(m *kit.Message) {
	first, total := s.d.Store.Register(session.Profile{
		ID:        session.UserID(m.FromID),
		FirstName: m.FirstName,
		Username:  m.Username,
	})
	if !first {
		return
	}
	opts := s.options()
	if s.d.Notify == nil || opts.OperatorID == 0 {
		return
	}
	text := firstContactText(profileView{ID: m.FromID, FirstName: m.FirstName, Username: m.Username}, total)
	if err := s.d.Notify.Notify(kit.ChatTarget{ChatID: opts.OperatorID}, text, &kit.SendOptions{ParseMode: modeHTML}); err != nil {
		s.d.Log.Warn("first-contact notification failed", logx.Int64("user", m.FromID), logx.Err(err))
	}
}

func (s *Service) onCallback(ctx context.Context, cb *kit.Callback) {
	if cb.Data != "verify" {
		_ = s.d.Adapter.AnswerCallback(ctx, cb.ID, "", false)
		return
	}
	_ = s.d.Adapter.AnswerCallback(ctx, cb.ID, "", false)

	opts := s.options()
	subscribed := true
	if opts.Channel != "" && s.d.Members != nil {
		ok, err := s.d.Members.IsChatMember(ctx, opts.Channel, cb.FromID)
		subscribed = err == nil && ok
	}
	if subscribed {
		_ = s.d.Adapter.EditText(ctx, kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}, verifiedText, nil)
		s.reply(ctx, cb.ChatID, welcomeText)
		return
	}
	_ = s.d.Adapter.AnswerCallback(ctx, cb.ID, notMemberText, true)
}

func (s *Service) reply(ctx context.Context, chatID int64, text string) {
	if _, err := s.d.Adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, &kit.SendOptions{ParseMode: modeMarkdown}); err != nil {
		s.d.Log.Warn("reply failed", logx.Int64("chat", chatID), logx.Err(err))
	}
}

// audit records a terminal outcome best-effort.
func (s *Service) audit(taskID string, userID session.UserID, outcome string, started time.Time, cause error) {
	if s.d.Audit == nil {
		return
	}
	username := ""
	if p, ok := s.d.Store.Profile(userID); ok {
		username = p.Username
	}
	rec := storage.RequestRecord{
		At:       started,
		TaskID:   taskID,
		UserID:   int64(userID),
		Username: username,
		Outcome:  outcome,
		TookMS:   time.Since(started).Milliseconds(),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.d.Audit.AppendRequest(ctx, rec); err != nil && !errors.Is(err, storage.ErrDisabled) {
		s.d.Log.Warn("audit append failed", logx.Err(err))
	}
}
