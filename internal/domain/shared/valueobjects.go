package shared

import "strconv"

// ═══════════════════════════════════════════════════════════════════════════
// IDENTIFIERS
// ═══════════════════════════════════════════════════════════════════════════

// Identifiers are issued by the host platform. The engine stores them as
// opaque positive numbers and never allocates one itself.
type (
	// UserID identifies a learner.
	UserID int64
	// VocabularyID identifies one sign in the content catalog.
	VocabularyID int64
	// LessonID identifies a lesson. Review cards carry the lesson of their
	// sign so due queries can be scoped to it.
	LessonID int64
	// BadgeID identifies a badge definition.
	BadgeID int64
)

func decimal[T ~int64](v T) string { return strconv.FormatInt(int64(v), 10) }

func (u UserID) IsValid() bool  { return u > 0 }
func (u UserID) Int64() int64   { return int64(u) }
func (u UserID) String() string { return decimal(u) }

func (v VocabularyID) IsValid() bool  { return v > 0 }
func (v VocabularyID) String() string { return decimal(v) }

func (l LessonID) IsValid() bool  { return l > 0 }
func (l LessonID) String() string { return decimal(l) }

func (b BadgeID) IsValid() bool  { return b > 0 }
func (b BadgeID) String() string { return decimal(b) }

// NewUserID rejects zero and negative ids.
func NewUserID(id int64) (UserID, error) {
	if u := UserID(id); u.IsValid() {
		return u, nil
	}
	return 0, NewDomainError("shared", "NewUserID", ErrInvalidID, "user id must be positive")
}

// ParseUserID reads a decimal id such as a CLI argument or a sorted-set
// member.
func ParseUserID(s string) (UserID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, WrapError("shared", "ParseUserID", ErrInvalidFormat, "user id is not a number", err)
	}
	return NewUserID(n)
}

// ═══════════════════════════════════════════════════════════════════════════
// RANK
// ═══════════════════════════════════════════════════════════════════════════

// Rank is a 1-based leaderboard position.
type Rank int

const (
	MinRank  Rank = 1
	Unranked Rank = 0 // no point account yet
)

func (r Rank) IsValid() bool    { return r >= MinRank }
func (r Rank) IsUnranked() bool { return r == Unranked }
func (r Rank) Int() int         { return int(r) }

// IsTop reports whether r is within the first n places.
func (r Rank) IsTop(n int) bool { return r.IsValid() && int(r) <= n }
