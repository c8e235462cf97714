package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"eduflow-backend/internal/clients"
	"eduflow-backend/internal/domain"
	"eduflow-backend/internal/repository"
)

type FeeRepository interface {
	Create(ctx context.Context, fee *domain.Fee) error
	GetByID(ctx context.Context, id int64) (*domain.Fee, error)
	List(ctx context.Context) ([]domain.Fee, error)
	ListByAcademicYear(ctx context.Context, year string) ([]domain.Fee, error)
	Update(ctx context.Context, fee *domain.Fee) error
	Deactivate(ctx context.Context, id int64) error
}

type AssignmentRepository interface {
	CreateBatch(ctx context.Context, assignments []domain.FeeAssignment) ([]domain.FeeAssignment, error)
	GetByID(ctx context.Context, id int64) (*domain.FeeAssignment, error)
	List(ctx context.Context) ([]domain.FeeAssignment, error)
	ListByStudent(ctx context.Context, studentID int64) ([]domain.FeeAssignment, error)
	ListByStudentAndYear(ctx context.Context, studentID int64, year string) ([]domain.FeeAssignment, error)
	ApplyDiscount(ctx context.Context, id int64, discountMinor int64, reason string) (*domain.FeeAssignment, error)
	Waive(ctx context.Context, id int64, reason string) (*domain.FeeAssignment, error)
	CollectionStats(ctx context.Context) (*repository.CollectionStats, error)
}

type StudentResolver interface {
	ResolveStudent(ctx context.Context, id int64) (*domain.Student, error)
	ResolveStudentsByClass(ctx context.Context, classID int64) ([]domain.Student, error)
}

const statsCacheKey = "collection_stats"
const statsCacheTTL = 60 * time.Second

type FeeService struct {
	fees        FeeRepository
	assignments AssignmentRepository
	students    StudentResolver
	redis       *clients.RedisClient
}

func NewFeeService(
	fees FeeRepository,
	assignments AssignmentRepository,
	students StudentResolver,
	redis *clients.RedisClient,
) *FeeService {
	return &FeeService{
		fees:        fees,
		assignments: assignments,
		students:    students,
		redis:       redis,
	}
}

type CreateFeeInput struct {
	Category           string
	Name               string
	AmountMinor        int64
	AcademicYear       string
	Term               string
	Description        *string
	Mandatory          bool
	ApplicableClassIDs []int64
}

func (in CreateFeeInput) validate() error {
	if !domain.FeeCategory(in.Category).Valid() {
		return fmt.Errorf("%w: unknown fee category %q", domain.ErrInvalidArgument, in.Category)
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: fee name is required", domain.ErrInvalidArgument)
	}
	if in.AmountMinor <= 0 {
		return fmt.Errorf("%w: fee amount must be positive", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(in.AcademicYear) == "" {
		return fmt.Errorf("%w: academic year is required", domain.ErrInvalidArgument)
	}
	if !domain.Term(in.Term).Valid() {
		return fmt.Errorf("%w: unknown term %q", domain.ErrInvalidArgument, in.Term)
	}
	return nil
}

func (s *FeeService) CreateFee(ctx context.Context, in CreateFeeInput) (*domain.Fee, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	fee := &domain.Fee{
		Category:           domain.FeeCategory(in.Category),
		Name:               strings.TrimSpace(in.Name),
		AmountMinor:        in.AmountMinor,
		AcademicYear:       in.AcademicYear,
		Term:               domain.Term(in.Term),
		Description:        in.Description,
		Mandatory:          in.Mandatory,
		Active:             true,
		ApplicableClassIDs: in.ApplicableClassIDs,
	}
	if err := s.fees.Create(ctx, fee); err != nil {
		return nil, err
	}
	return fee, nil
}

func (s *FeeService) UpdateFee(ctx context.Context, id int64, in CreateFeeInput) (*domain.Fee, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	fee, err := s.fees.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fee.Category = domain.FeeCategory(in.Category)
	fee.Name = strings.TrimSpace(in.Name)
	fee.AmountMinor = in.AmountMinor
	fee.AcademicYear = in.AcademicYear
	fee.Term = domain.Term(in.Term)
	fee.Description = in.Description
	fee.Mandatory = in.Mandatory
	fee.ApplicableClassIDs = in.ApplicableClassIDs

	if err := s.fees.Update(ctx, fee); err != nil {
		return nil, err
	}
	return fee, nil
}

func (s *FeeService) GetFee(ctx context.Context, id int64) (*domain.Fee, error) {
	return s.fees.GetByID(ctx, id)
}

func (s *FeeService) ListFees(ctx context.Context, academicYear string) ([]domain.Fee, error) {
	if academicYear != "" {
		return s.fees.ListByAcademicYear(ctx, academicYear)
	}
	return s.fees.List(ctx)
}

func (s *FeeService) DeactivateFee(ctx context.Context, id int64) error {
	return s.fees.Deactivate(ctx, id)
}

type AssignFeeInput struct {
	FeeID          int64
	StudentIDs     []int64
	ClassIDs       []int64
	DueDate        time.Time
	DiscountMinor  int64
	DiscountReason string
}

// AssignFee bills a fee to the given students plus the current rosters of the
// given classes. Class membership is expanded once, at call time. Students
// that already carry this fee for the academic year are skipped; only newly
// created assignments are returned. An optional upfront discount applies to
// every assignment the call creates.
func (s *FeeService) AssignFee(ctx context.Context, in AssignFeeInput) ([]domain.FeeAssignment, error) {
	if in.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: due date is required", domain.ErrInvalidArgument)
	}

	fee, err := s.fees.GetByID(ctx, in.FeeID)
	if err != nil {
		return nil, err
	}
	if !fee.Active {
		return nil, fmt.Errorf("%w: fee %d is inactive", domain.ErrInvalidState, fee.ID)
	}

	if in.DiscountMinor < 0 {
		return nil, fmt.Errorf("%w: discount must not be negative", domain.ErrInvalidArgument)
	}
	if in.DiscountMinor > fee.AmountMinor {
		return nil, fmt.Errorf("%w: discount exceeds fee amount", domain.ErrInvalidArgument)
	}
	if in.DiscountMinor > 0 && strings.TrimSpace(in.DiscountReason) == "" {
		return nil, fmt.Errorf("%w: discount reason is required", domain.ErrInvalidArgument)
	}

	seen := make(map[int64]bool)
	var studentIDs []int64

	for _, id := range in.StudentIDs {
		st, err := s.students.ResolveStudent(ctx, id)
		if err != nil {
			return nil, err
		}
		if !seen[st.ID] {
			seen[st.ID] = true
			studentIDs = append(studentIDs, st.ID)
		}
	}

	for _, classID := range in.ClassIDs {
		roster, err := s.students.ResolveStudentsByClass(ctx, classID)
		if err != nil {
			return nil, err
		}
		for _, st := range roster {
			if !seen[st.ID] {
				seen[st.ID] = true
				studentIDs = append(studentIDs, st.ID)
			}
		}
	}

	if len(studentIDs) == 0 {
		return nil, fmt.Errorf("%w: no students resolved for assignment", domain.ErrInvalidArgument)
	}

	now := time.Now()
	assignments := make([]domain.FeeAssignment, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		a := domain.FeeAssignment{
			StudentID:     studentID,
			FeeID:         fee.ID,
			AcademicYear:  fee.AcademicYear,
			DueDate:       in.DueDate,
			AmountMinor:   fee.AmountMinor,
			DiscountMinor: in.DiscountMinor,
		}
		if in.DiscountMinor > 0 {
			reason := strings.TrimSpace(in.DiscountReason)
			a.DiscountReason = &reason
		}
		a.Recompute(now)
		assignments = append(assignments, a)
	}

	created, err := s.assignments.CreateBatch(ctx, assignments)
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	return created, nil
}

func (s *FeeService) GetAssignment(ctx context.Context, id int64) (*domain.FeeAssignment, error) {
	return s.assignments.GetByID(ctx, id)
}

func (s *FeeService) ListAssignments(ctx context.Context) ([]domain.FeeAssignment, error) {
	return s.assignments.List(ctx)
}

// GetStudentFees returns the student's ledger, optionally narrowed to one
// academic year.
func (s *FeeService) GetStudentFees(ctx context.Context, studentID int64, academicYear string) ([]domain.FeeAssignment, error) {
	if _, err := s.students.ResolveStudent(ctx, studentID); err != nil {
		return nil, err
	}
	if academicYear != "" {
		return s.assignments.ListByStudentAndYear(ctx, studentID, academicYear)
	}
	return s.assignments.ListByStudent(ctx, studentID)
}

func (s *FeeService) ApplyDiscount(ctx context.Context, assignmentID, discountMinor int64, reason string) (*domain.FeeAssignment, error) {
	if discountMinor < 0 {
		return nil, fmt.Errorf("%w: discount must not be negative", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: discount reason is required", domain.ErrInvalidArgument)
	}

	a, err := s.assignments.ApplyDiscount(ctx, assignmentID, discountMinor, reason)
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	return a, nil
}

func (s *FeeService) WaiveFee(ctx context.Context, assignmentID int64, reason string) (*domain.FeeAssignment, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: waiver reason is required", domain.ErrInvalidArgument)
	}

	a, err := s.assignments.Waive(ctx, assignmentID, reason)
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	return a, nil
}

// CollectionStats aggregates the whole ledger; the result is cached in redis
// for a minute because the dashboard polls it.
func (s *FeeService) CollectionStats(ctx context.Context) (*repository.CollectionStats, error) {
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, statsCacheKey); err == nil {
			var st repository.CollectionStats
			if err := json.Unmarshal([]byte(cached), &st); err == nil {
				return &st, nil
			}
		}
	}

	st, err := s.assignments.CollectionStats(ctx)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(st); err == nil {
			_ = s.redis.Set(ctx, statsCacheKey, string(data), statsCacheTTL)
		}
	}
	return st, nil
}

func (s *FeeService) invalidateStats(ctx context.Context) {
	if s.redis == nil {
		return
	}
	// stale stats self-heal within the TTL
	_ = s.redis.Del(ctx, statsCacheKey)
}
