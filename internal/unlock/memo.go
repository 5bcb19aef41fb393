package unlock

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"github.com/abhisek/coursetape/internal/catalog"
)

// Memo caches the last ComputeStatuses result, keyed by a content hash
// of the inputs rather than object identity, so repeated recomputation
// with unchanged inputs is free.
type Memo struct {
	key    string
	cached map[string]Status
}

// Compute returns the memoized statuses when the inputs hash to the
// same key as the previous call, recomputing otherwise.
func (m *Memo) Compute(
	lessons []catalog.Lesson,
	modules []catalog.Module,
	currentLessonID string,
	completed map[string]bool,
	reviewMode bool,
) map[string]Status {
	key := hashInputs(lessons, modules, currentLessonID, completed, reviewMode)
	if m.cached != nil && key == m.key {
		return m.cached
	}
	m.key = key
	m.cached = ComputeStatuses(lessons, modules, currentLessonID, completed, reviewMode)
	return m.cached
}

func hashInputs(
	lessons []catalog.Lesson,
	modules []catalog.Module,
	currentLessonID string,
	completed map[string]bool,
	reviewMode bool,
) string {
	h := sha256.New()
	writeStr := func(s string) {
		var n [4]byte
		binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}

	for _, l := range lessons {
		writeStr(l.ID)
	}
	for _, m := range modules {
		writeStr(m.ID)
		for _, id := range m.LessonIDs {
			writeStr(id)
		}
	}
	writeStr(currentLessonID)

	done := make([]string, 0, len(completed))
	for id, ok := range completed {
		if ok {
			done = append(done, id)
		}
	}
	sort.Strings(done)
	for _, id := range done {
		writeStr(id)
	}

	if reviewMode {
		writeStr("review")
	}
	return hex.EncodeToString(h.Sum(nil))
}
