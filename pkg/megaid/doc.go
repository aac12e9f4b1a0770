// Package megaid mints and verifies compound identifiers.
//
// # Overview
//
// A compound ID joins a time-ordered snowflake with two independently signed
// metadata blocks:
//
//	<snowflake>:<immutable token>:<mutable token>
//
// The immutable block carries the snowflake, its creation time, its salt and
// arbitrary immutable data. It is signed with the admin key when the ID is
// minted and is never re-signed.
//
// The mutable block carries arbitrary mutable data and the time of the last
// update. It is signed with the shared key and replaced on every update.
// Because it never contains the identifier, holding the shared key lets a
// caller change mutable data but not identity or creation time.
//
// Each token is a compact HS256 JWT, so either block can be verified on its
// own with the matching key. Numbers in decoded metadata are json.Number
// values, so integers wider than a float64 mantissa read back exactly.
//
// # Usage
//
//	keys, err := megaid.GenerateKeys()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	engine, err := megaid.New(keys, snowflake.Bits52)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	id, err := engine.Create(map[string]any{"owner": "alice"}, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	id, err = engine.Update(id, map[string]any{"status": "active"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	view, err := engine.Read(id)
//	switch {
//	case megaid.IsTampered(err):
//		// forged block or wrong key
//	case errors.Is(err, megaid.ErrMalformedID):
//		// not a compound ID
//	case err != nil:
//		log.Fatal(err)
//	}
//	fmt.Println(view.ImmutableData["owner"], view.MutableData["status"])
//
// # Key separation
//
// Update verifies and re-signs only the mutable block and never touches the
// admin key. An engine built with a valid shared key and any non-empty admin
// key can therefore update IDs; only Read and VerifyImmutable need the real
// admin key.
//
// # Errors
//
// Every failure wraps one of ErrInvalidConfiguration, ErrMalformedID,
// ErrSignatureInvalid, ErrTokenMalformed, ErrTokenExpired or
// ErrInvalidMetadata. Token failures also name the block they came from
// (see FailedBlock).
package megaid
