package pagination

import "strconv"

// compactThreshold is the largest page count rendered without ellipses.
const compactThreshold = 7

type EllipsisKind int

const (
	NoEllipsis EllipsisKind = iota
	EllipsisBeforeCurrent
	EllipsisAfterCurrent
)

// Token is either a page number or an ellipsis marker.
type Token struct {
	Page     int
	Ellipsis EllipsisKind
}

func (t Token) IsEllipsis() bool {
	return t.Ellipsis != NoEllipsis
}

func (t Token) String() string {
	if t.IsEllipsis() {
		return "…"
	}
	return strconv.Itoa(t.Page)
}

// Window returns the pager tokens for currentPage out of totalPages. It
// expects currentPage already clamped with Clamp; a single page needs no
// pager and yields nil.
func Window(currentPage int, totalPages int) []Token {
	if totalPages <= 1 {
		return nil
	}

	if totalPages <= compactThreshold {
		tokens := make([]Token, 0, totalPages)
		for page := 1; page <= totalPages; page++ {
			tokens = append(tokens, Token{Page: page})
		}
		return tokens
	}

	// First, last and the neighbours of the current page, in ascending order
	// for any clamped currentPage.
	candidates := [...]int{1, currentPage - 1, currentPage, currentPage + 1, totalPages}
	tokens := make([]Token, 0, 7)
	previous := 0
	for _, page := range candidates {
		if page <= previous || page > totalPages {
			continue
		}
		if previous != 0 && page-previous > 1 {
			kind := EllipsisAfterCurrent
			if page < currentPage {
				kind = EllipsisBeforeCurrent
			}
			tokens = append(tokens, Token{Ellipsis: kind})
		}
		tokens = append(tokens, Token{Page: page})
		previous = page
	}

	return tokens
}

func Clamp(page int, totalPages int) int {
	if totalPages < 1 {
		return 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

func HasPrevious(currentPage int) bool {
	return currentPage > 1
}

func HasNext(currentPage int, totalPages int) bool {
	return currentPage < totalPages
}
