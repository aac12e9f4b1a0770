package megaid

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/megalab/megaid/pkg/snowflake"
)

// DefaultMetadata is used as immutable data when Create receives none and no
// WithDefaultMetadata option was given.
func DefaultMetadata() map[string]any {
	return map[string]any{
		"created_by": "MEGAID",
		"version":    "2.0",
	}
}

// Engine mints, reads and updates compound IDs.
//
// An Engine holds its key pair, bit width and defaults for its whole lifetime
// and never mutates them, so a single instance may be shared across
// goroutines without locking.
type Engine struct {
	adminKey  []byte
	sharedKey []byte
	codec     *snowflake.Codec
	defaults  map[string]any
	now       func() time.Time
	logger    *slog.Logger
}

type engineOptions struct {
	defaults map[string]any
	now      func() time.Time
	random   io.Reader
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

// WithDefaultMetadata sets the immutable data used when Create gets none.
func WithDefaultMetadata(m map[string]any) Option {
	return func(o *engineOptions) {
		if len(m) > 0 {
			o.defaults = cloneMap(m)
		}
	}
}

// WithClock overrides the wall clock used for minting and updates.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRandom overrides the salt source. Defaults to crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(o *engineOptions) {
		o.random = r
	}
}

// WithLogger enables debug logging of verification failures.
// Key material is never logged.
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an engine. It fails with ErrInvalidConfiguration if either key
// is missing or bits is not a supported width.
func New(keys Keys, bits snowflake.BitSize, opts ...Option) (*Engine, error) {
	if err := keys.Validate(); err != nil {
		return nil, err
	}
	if !snowflake.Supported(bits) {
		return nil, configErrorf("bit size must be one of: 64, 52, 32 (got %d)", bits)
	}

	o := engineOptions{
		defaults: DefaultMetadata(),
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	codec, err := snowflake.NewCodec(bits, snowflake.WithClock(o.now), snowflake.WithRandom(o.random))
	if err != nil {
		return nil, &Error{Kind: ErrInvalidConfiguration, Err: err}
	}

	return &Engine{
		adminKey:  []byte(keys.Admin),
		sharedKey: []byte(keys.Shared),
		codec:     codec,
		defaults:  o.defaults,
		now:       o.now,
		logger:    o.logger.With(slog.String("component", "megaid")),
	}, nil
}

// NewFromProvider obtains keys from provider and creates an engine.
func NewFromProvider(ctx context.Context, provider KeyProvider, bits snowflake.BitSize, opts ...Option) (*Engine, error) {
	if provider == nil {
		return nil, configErrorf("key provider is nil")
	}
	keys, err := provider.Keys(ctx)
	if err != nil {
		return nil, &Error{Kind: ErrInvalidConfiguration, Msg: "failed to load keys", Err: err}
	}
	return New(keys, bits, opts...)
}

// BitSize returns the identifier width of this engine.
func (e *Engine) BitSize() snowflake.BitSize { return e.codec.Bits() }

// Codec returns the identifier codec used by this engine.
func (e *Engine) Codec() *snowflake.Codec { return e.codec }

// Create mints a new compound ID.
//
// A nil or empty immutable map is replaced by the engine's default metadata;
// a nil mutable map becomes an empty one. Metadata that cannot be encoded as
// JSON yields ErrInvalidMetadata.
func (e *Engine) Create(immutable, mutable map[string]any) (string, error) {
	id, err := e.codec.Encode()
	if err != nil {
		return "", fmt.Errorf("failed to mint snowflake: %w", err)
	}
	timestamp, salt := e.codec.Decode(id)

	if len(immutable) == 0 {
		immutable = e.defaults
	}

	immutableToken, err := signBlock(BlockImmutable, &ImmutableRecord{
		Megaid:        id,
		DateCreated:   timestamp,
		Salt:          salt,
		ImmutableData: immutable,
	}, e.adminKey)
	if err != nil {
		return "", err
	}

	mutableToken, err := signBlock(BlockMutable, &MutableRecord{
		DateUpdated: timestamp,
		MutableData: nonNil(mutable),
	}, e.sharedKey)
	if err != nil {
		return "", err
	}

	e.logger.Debug("created compound id", slog.Uint64("megaid", id))

	return CompoundID{Snowflake: id, Immutable: immutableToken, Mutable: mutableToken}.String(), nil
}

// Read verifies both blocks of compoundID and returns the merged view.
// Structural problems are reported as ErrMalformedID before any signature is
// checked. A failure in either block fails the whole read; use
// VerifyImmutable or VerifyMutable to inspect one block on its own.
func (e *Engine) Read(compoundID string) (*MetadataView, error) {
	cid, err := e.Parse(compoundID)
	if err != nil {
		return nil, err
	}

	imm, err := e.VerifyImmutable(cid.Immutable)
	if err != nil {
		return nil, err
	}
	if imm.Megaid != cid.Snowflake {
		e.logger.Debug("snowflake segment mismatch",
			slog.Uint64("segment", cid.Snowflake), slog.Uint64("signed", imm.Megaid))
		return nil, &Error{
			Kind:  ErrSignatureInvalid,
			Block: BlockImmutable,
			Msg:   fmt.Sprintf("snowflake segment %d does not match signed identifier %d", cid.Snowflake, imm.Megaid),
		}
	}

	mut, err := e.VerifyMutable(cid.Mutable)
	if err != nil {
		return nil, err
	}

	return mergeView(imm, mut), nil
}

// Update replaces the mutable block of compoundID.
//
// Only the mutable block is verified, with the shared key. The snowflake and
// immutable segments are returned byte-for-byte as given and the admin key is
// never used, so a holder of the shared key alone can update mutable data.
// Keys in updates overwrite keys of the same name; other keys are kept.
func (e *Engine) Update(compoundID string, updates map[string]any) (string, error) {
	cid, err := e.Parse(compoundID)
	if err != nil {
		return "", err
	}

	current, err := e.VerifyMutable(cid.Mutable)
	if err != nil {
		return "", err
	}

	token, err := signBlock(BlockMutable, &MutableRecord{
		DateUpdated: e.now().UnixMilli(),
		MutableData: mergeShallow(current.MutableData, updates),
	}, e.sharedKey)
	if err != nil {
		return "", err
	}

	e.logger.Debug("updated mutable block",
		slog.Uint64("megaid", cid.Snowflake), slog.Int("keys", len(updates)))

	cid.Mutable = token
	return cid.String(), nil
}

// VerifyImmutable checks a single immutable token with the admin key.
func (e *Engine) VerifyImmutable(token string) (*ImmutableRecord, error) {
	var rec ImmutableRecord
	if err := verifyBlock(BlockImmutable, token, e.adminKey, &rec); err != nil {
		e.logger.Debug("immutable block rejected", slog.Any("error", err))
		return nil, err
	}
	return &rec, nil
}

// VerifyMutable checks a single mutable token with the shared key.
func (e *Engine) VerifyMutable(token string) (*MutableRecord, error) {
	var rec MutableRecord
	if err := verifyBlock(BlockMutable, token, e.sharedKey, &rec); err != nil {
		e.logger.Debug("mutable block rejected", slog.Any("error", err))
		return nil, err
	}
	rec.MutableData = nonNil(rec.MutableData)
	return &rec, nil
}

// Parse splits compoundID using this engine's bit width. No signatures are
// checked.
func (e *Engine) Parse(compoundID string) (CompoundID, error) {
	return ParseCompoundID(compoundID, e.codec)
}

// Decode splits a bare snowflake into its timestamp (ms) and salt.
func (e *Engine) Decode(id uint64) (timestampMs int64, salt uint64) {
	return e.codec.Decode(id)
}

// DecodeString parses a decimal snowflake and decodes it.
func (e *Engine) DecodeString(s string) (id uint64, timestampMs int64, salt uint64, err error) {
	id, err = e.codec.ParseID(s)
	if err != nil {
		return 0, 0, 0, &Error{Kind: ErrMalformedID, Msg: "invalid snowflake", Err: err}
	}
	timestampMs, salt = e.codec.Decode(id)
	return id, timestampMs, salt, nil
}

// FormatID renders a snowflake in its decimal text form.
func FormatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
