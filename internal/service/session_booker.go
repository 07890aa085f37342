package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Freeeeeet/mentorship_slots/internal/clock"
	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMeetingTimeout  = 5 * time.Second
	defaultFallbackBaseURL = "https://meet.jit.si"
)

// Dependencies bundles the collaborators of the reservation and summon coordinators.
type Dependencies struct {
	Tx       Transactor
	Slots    SlotStore
	Bookings BookingStore
	Projects ProjectDirectory
	Tasks    TaskCounter
	Users    UserDirectory
	Meetings MeetingLinkProvider
	Notifier Notifier
	Cache    SlotCache
	Metrics  Metrics
	Clock    clock.Clock
	Logger   *zap.Logger
}

// BookerOption tunes meeting-link acquisition shared by both coordinators.
type BookerOption func(*sessionBooker)

// WithMeetingTimeout bounds the call to the meeting-link provider.
func WithMeetingTimeout(d time.Duration) BookerOption {
	return func(b *sessionBooker) {
		if d > 0 {
			b.meetingTimeout = d
		}
	}
}

// WithFallbackBaseURL sets the base of placeholder meeting links.
func WithFallbackBaseURL(base string) BookerOption {
	return func(b *sessionBooker) {
		if base != "" {
			b.fallbackBaseURL = strings.TrimRight(base, "/")
		}
	}
}

// sessionBooker owns the claim protocol: the only code path that flips a
// slot to booked and inserts its booking.
type sessionBooker struct {
	Dependencies

	quota           *QuotaService
	meetingTimeout  time.Duration
	fallbackBaseURL string
}

func newSessionBooker(deps Dependencies, opts ...BookerOption) *sessionBooker {
	if deps.Cache == nil {
		deps.Cache = nopCache{}
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	b := &sessionBooker{
		Dependencies:    deps,
		quota:           NewQuotaService(deps.Tasks, deps.Bookings),
		meetingTimeout:  defaultMeetingTimeout,
		fallbackBaseURL: defaultFallbackBaseURL,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// claimRequest describes one booking to create against one slot.
type claimRequest struct {
	slot       *model.Slot // slot.ID == 0: the slot is created inside the transaction
	booking    *model.Booking
	meetingURL string

	// quotaStudentIDs are set for student-initiated bookings (sorted); each
	// quota is re-checked under a per-student lock inside the transaction.
	quotaStudentIDs []int64
}

// claim runs the atomic claim: optional slot insert, quota re-check,
// conditional update and booking insert all commit or roll back together.
func (b *sessionBooker) claim(ctx context.Context, req claimRequest) error {
	return b.Tx.WithTx(ctx, func(ctx context.Context) error {
		if req.slot.ID == 0 {
			if err := b.Slots.Create(ctx, req.slot); err != nil {
				return fmt.Errorf("create slot: %w", err)
			}
		}

		// блокировки берутся в порядке возрастания id
		for _, studentID := range req.quotaStudentIDs {
			if err := b.Bookings.LockStudentQuota(ctx, req.booking.ProjectID, studentID); err != nil {
				return err
			}
			if err := b.quota.Check(ctx, model.RoleStudent, req.booking.ProjectID, studentID); err != nil {
				return err
			}
		}

		claimed, err := b.Slots.Claim(ctx, req.slot.ID, req.meetingURL)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrSlotAlreadyBooked
		}

		req.booking.SlotID = req.slot.ID
		if err := b.Bookings.Create(ctx, req.booking); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		return nil
	})
}

// committed updates in-memory state after a successful claim and fires the
// post-commit side effects.
func (b *sessionBooker) committed(ctx context.Context, req claimRequest, participants []*model.User, kind model.SessionKind) {
	req.slot.IsBooked = true
	req.slot.MeetingURL = &req.meetingURL
	req.slot.Version++
	req.booking.Slot = req.slot

	b.Cache.Invalidate(ctx, req.slot.TeacherID)

	b.Notifier.Dispatch(ctx, participants, model.SessionSummary{
		Kind:       kind,
		BookingID:  req.booking.ID,
		ProjectID:  req.booking.ProjectID,
		Start:      req.slot.StartTime,
		End:        req.slot.EndTime,
		MeetingURL: req.meetingURL,
		Note:       req.booking.Note,
	})
}

// participants loads the students and the slot teacher.
func (b *sessionBooker) participants(ctx context.Context, studentIDs []int64, teacherID int64) ([]*model.User, error) {
	ids := append(slices.Clone(studentIDs), teacherID)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	users, err := b.Users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get participants: %w", err)
	}
	return users, nil
}

// meetingLink asks the provider for a session link and falls back to a
// placeholder when it fails or times out. It never returns an error.
func (b *sessionBooker) meetingLink(ctx context.Context, slot *model.Slot, project *model.Project, participants []*model.User, note string) string {
	emails := make([]string, 0, len(participants))
	for _, u := range participants {
		if u.Email != "" {
			emails = append(emails, u.Email)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, b.meetingTimeout)
	defer cancel()

	url, err := b.Meetings.CreateSession(callCtx, model.MeetingRequest{
		Title:          fmt.Sprintf("Mentorship: %s", project.Name),
		Description:    note,
		Start:          slot.StartTime,
		End:            slot.EndTime,
		AttendeeEmails: emails,
	})
	if err == nil && url != "" {
		return url
	}

	fallback := b.placeholderLink()
	b.Metrics.ObserveMeetingLinkFallback()
	b.Logger.Warn("Meeting link provider failed, using placeholder",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("project_id", project.ID),
		zap.String("placeholder", fallback),
		zap.Error(err),
	)
	return fallback
}

func (b *sessionBooker) placeholderLink() string {
	return fmt.Sprintf("%s/mentorship-%s", b.fallbackBaseURL, uuid.NewString())
}

// affiliatedProject returns the project only if the slot teacher belongs to it.
func (b *sessionBooker) affiliatedProject(ctx context.Context, projectID, teacherID int64) (*model.Project, error) {
	project, err := b.Projects.FindProjectWithTeacher(ctx, projectID, teacherID)
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	if project == nil {
		return nil, ErrTeacherNotInProject
	}
	return project, nil
}

// checkEnrolled returns ErrStudentNotInProject unless every student belongs
// to the project.
func (b *sessionBooker) checkEnrolled(ctx context.Context, projectID int64, studentIDs []int64) error {
	enrolled, err := b.Projects.ListStudentIDs(ctx, projectID)
	if err != nil {
		return fmt.Errorf("list project students: %w", err)
	}
	for _, id := range studentIDs {
		if !slices.Contains(enrolled, id) {
			return fmt.Errorf("%w: student %d", ErrStudentNotInProject, id)
		}
	}
	return nil
}

// loadSlot returns ErrSlotNotFound for an unknown slot.
func (b *sessionBooker) loadSlot(ctx context.Context, slotID int64) (*model.Slot, error) {
	slot, err := b.Slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, ErrSlotNotFound
	}
	return slot, nil
}

// checkBookable rejects slots that already started or are visibly booked.
func (b *sessionBooker) checkBookable(slot *model.Slot) error {
	if slot.StartTime.Before(b.Clock.Now()) {
		return ErrSlotInPast
	}
	// Быстрый отказ до похода к провайдеру встреч; окончательное решение принимает Claim
	if slot.IsBooked {
		return ErrSlotAlreadyBooked
	}
	return nil
}
