// Package pagewindow holds the pagination bookkeeping for one server-paginated slice.
//
// The functions in this file are the only code allowed to set TotalPages, HasNext and
// HasPrevious. Everything that patches a window locally goes through them.
package pagewindow

// Window mirrors the backend pageInfo object.
type Window struct {
	Page          int  `json:"page"`
	Size          int  `json:"size"`
	TotalElements int  `json:"totalElements"`
	TotalPages    int  `json:"totalPages"`
	HasNext       bool `json:"hasNext"`
	HasPrevious   bool `json:"hasPrevious"`
}

// New builds a window with derived fields.
func New(page, size, totalElements int) Window {
	return derive(Window{Page: page, Size: size, TotalElements: totalElements})
}

// Empty is the window of a slice that has no elements yet.
func Empty(size int) Window {
	return New(0, size, 0)
}

// RecomputeAfterInsert accounts for one element added locally.
// sizeOverride replaces the window size when positive.
func RecomputeAfterInsert(w Window, sizeOverride int) Window {
	if sizeOverride > 0 {
		w.Size = sizeOverride
	}
	w.TotalElements++
	return derive(w)
}

// RecomputeAfterDelete accounts for one element removed locally. The current page is
// clamped because it may no longer exist.
func RecomputeAfterDelete(w Window) Window {
	w.TotalElements--
	if w.TotalElements < 0 {
		w.TotalElements = 0
	}
	w.TotalPages = totalPages(w.TotalElements, w.Size)
	if w.Page > w.TotalPages-1 {
		w.Page = w.TotalPages - 1
	}
	return derive(w)
}

// InBounds reports whether target is an existing page of w.
func InBounds(w Window, target int) bool {
	return target >= 0 && target < w.TotalPages
}

// FromWire adopts a pageInfo object from the backend. A size the backend left
// out becomes size, and the derived fields are recomputed so an empty page
// reports one total page like every other window.
func FromWire(w Window, size int) Window {
	if w.Size <= 0 {
		w.Size = size
	}
	return derive(w)
}

// Consistent reports whether the derived fields of w agree with its totals.
func Consistent(w Window) bool {
	return w == derive(w)
}

func derive(w Window) Window {
	if w.Page < 0 {
		w.Page = 0
	}
	w.TotalPages = totalPages(w.TotalElements, w.Size)
	w.HasNext = w.Page < w.TotalPages-1
	w.HasPrevious = w.Page > 0
	return w
}

func totalPages(total, size int) int {
	if size < 1 {
		size = 1
	}
	if total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}
