package clf

// Merge performs a streaming 2-way merge over older and newer (older is
// lower priority). If shadows is non-empty, any entry whose identity
// appears in one of the shadow buckets is dropped before being emitted;
// BucketList passes as shadows the buckets of levels shallower than the
// merge target, which hold newer writes than either input. If dropDead is
// true (the merge target is the terminal, deepest level), DEAD entries are
// elided from the output instead of preserved, since nothing below the
// terminal level could resurrect or depend on them.
func Merge(dir string, older, newer *Bucket, shadows []*Bucket, dropDead bool) (*Bucket, error) {
	shadowSet, err := NewShadowSet(shadows)
	if err != nil {
		return nil, err
	}

	oldIt, err := older.Entries()
	if err != nil {
		return nil, err
	}
	defer oldIt.Close()
	newIt, err := newer.Entries()
	if err != nil {
		return nil, err
	}
	defer newIt.Close()

	out := make([]CLFEntry, 0, older.Len()+newer.Len())
	emit := func(e CLFEntry) error {
		if dropDead && e.Tag == Dead {
			return nil
		}
		shadowed, err := shadowSet.Contains(Identity(e))
		if err != nil {
			return err
		}
		if shadowed {
			return nil
		}
		out = append(out, e)
		return nil
	}

	oldHead, oldOk, err := oldIt.Next()
	if err != nil {
		return nil, err
	}
	newHead, newOk, err := newIt.Next()
	if err != nil {
		return nil, err
	}

	for oldOk && newOk {
		c := Identity(oldHead).Compare(Identity(newHead))
		switch {
		case c < 0:
			if err := emit(oldHead); err != nil {
				return nil, err
			}
			oldHead, oldOk, err = oldIt.Next()
		case c > 0:
			if err := emit(newHead); err != nil {
				return nil, err
			}
			newHead, newOk, err = newIt.Next()
		default:
			// Tie: newer side wins outright, whether that's a LIVE
			// overwriting a LIVE/DEAD, or a DEAD annihilating a LIVE.
			if err := emit(newHead); err != nil {
				return nil, err
			}
			oldHead, oldOk, err = oldIt.Next()
			if err != nil {
				return nil, err
			}
			newHead, newOk, err = newIt.Next()
		}
		if err != nil {
			return nil, err
		}
	}
	for oldOk {
		if err := emit(oldHead); err != nil {
			return nil, err
		}
		oldHead, oldOk, err = oldIt.Next()
		if err != nil {
			return nil, err
		}
	}
	for newOk {
		if err := emit(newHead); err != nil {
			return nil, err
		}
		newHead, newOk, err = newIt.Next()
		if err != nil {
			return nil, err
		}
	}

	return finalize(dir, out)
}
