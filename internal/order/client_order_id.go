package order

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// MaxClientOrderIDLength keeps ids well inside broker limits
	MaxClientOrderIDLength = 48

	// FallbackMarker identifies ids generated without a sequence store
	FallbackMarker = "FALLBACK"
)

var (
	ErrClientOrderIDTooLong = errors.New("client order ID exceeds maximum length")
	ErrInvalidClientOrderID = errors.New("invalid client order ID format")
)

// Mode is the trading horizon or origin an order belongs to
type Mode string

const (
	ModeScalp    Mode = "scalp"
	ModeDayTrade Mode = "day_trade"
	ModeSwing    Mode = "swing"
	ModeManual   Mode = "manual"
	ModeSystem   Mode = "system"
)

// ModeCode maps Mode to 3-character codes for client order ids
var ModeCode = map[Mode]string{
	ModeScalp:    "SCA",
	ModeDayTrade: "DAY",
	ModeSwing:    "SWI",
	ModeManual:   "MAN",
	ModeSystem:   "SYS",
}

// Purpose is what the order does in the position lifecycle
type Purpose string

const (
	PurposeEntry     Purpose = "E"
	PurposeExit      Purpose = "X"
	PurposeEmergency Purpose = "EM"
)

// ModeFromString converts a trade type name to a Mode
func ModeFromString(s string) Mode {
	m := Mode(s)
	if _, ok := ModeCode[m]; ok {
		return m
	}
	return ModeSwing
}

// Sequencer hands out per-day order sequence numbers
type Sequencer interface {
	IncrementDailySequence(ctx context.Context, dateKey string) (int64, error)
}

// ClientOrderIDGenerator builds ids of the form MODE-DDMMM-NNNNN-PURPOSE,
// e.g. "SWI-15JAN-00001-E", or MODE-FALLBACK-8HEX-PURPOSE without a sequencer
type ClientOrderIDGenerator struct {
	seq      Sequencer
	timezone *time.Location
	logger   zerolog.Logger
	now      func() time.Time
}

// NewClientOrderIDGenerator creates a generator; seq may be nil
func NewClientOrderIDGenerator(seq Sequencer, timezone *time.Location, logger zerolog.Logger) *ClientOrderIDGenerator {
	if timezone == nil {
		timezone = time.UTC
	}
	return &ClientOrderIDGenerator{
		seq:      seq,
		timezone: timezone,
		logger:   logger,
		now:      time.Now,
	}
}

// Generate creates a new client order id
func (g *ClientOrderIDGenerator) Generate(ctx context.Context, mode Mode, purpose Purpose) string {
	code, ok := ModeCode[mode]
	if !ok {
		code = ModeCode[ModeSwing]
	}
	now := g.now().In(g.timezone)

	if g.seq != nil {
		n, err := g.seq.IncrementDailySequence(ctx, now.Format("20060102"))
		if err == nil {
			return fmt.Sprintf("%s-%s-%05d-%s", code, strings.ToUpper(now.Format("02Jan")), n, purpose)
		}
		g.logger.Warn().Err(err).Msg("Order sequence unavailable, using fallback id")
	}
	return fmt.Sprintf("%s-%s-%s-%s", code, FallbackMarker, shortUniqueID(), purpose)
}

func shortUniqueID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// ParsedClientOrderID contains the components of a structured id
type ParsedClientOrderID struct {
	Mode       Mode
	DateStr    string
	Sequence   int
	Purpose    Purpose
	IsFallback bool
	Raw        string
}

var (
	normalIDRegex   = regexp.MustCompile(`^([A-Z]{3})-(\d{2}[A-Z]{3})-(\d{5,})-([A-Z]+)$`)
	fallbackIDRegex = regexp.MustCompile(`^([A-Z]{3})-FALLBACK-([A-F0-9]{8})-([A-Z]+)$`)
)

// ParseClientOrderID parses a structured id
func ParseClientOrderID(id string) (*ParsedClientOrderID, error) {
	if id == "" {
		return nil, ErrInvalidClientOrderID
	}
	if len(id) > MaxClientOrderIDLength {
		return nil, fmt.Errorf("%w: %d characters", ErrClientOrderIDTooLong, len(id))
	}
	upper := strings.ToUpper(id)

	if m := fallbackIDRegex.FindStringSubmatch(upper); m != nil {
		mode, ok := modeForCode(m[1])
		if !ok {
			return nil, fmt.Errorf("%w: unknown mode code %q", ErrInvalidClientOrderID, m[1])
		}
		return &ParsedClientOrderID{Mode: mode, DateStr: FallbackMarker, Purpose: Purpose(m[3]), IsFallback: true, Raw: id}, nil
	}
	if m := normalIDRegex.FindStringSubmatch(upper); m != nil {
		mode, ok := modeForCode(m[1])
		if !ok {
			return nil, fmt.Errorf("%w: unknown mode code %q", ErrInvalidClientOrderID, m[1])
		}
		seq, _ := strconv.Atoi(m[3])
		return &ParsedClientOrderID{Mode: mode, DateStr: m[2], Sequence: seq, Purpose: Purpose(m[4]), Raw: id}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidClientOrderID, id)
}

func modeForCode(code string) (Mode, bool) {
	for m, c := range ModeCode {
		if c == code {
			return m, true
		}
	}
	return "", false
}
