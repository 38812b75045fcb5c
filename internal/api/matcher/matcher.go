// Package matcher holds the wire messages and the gRPC service descriptor of
// swipe.v1.MatcherService. Messages travel with the "json" codec subtype.
package matcher

// SearchCriteria is the optional search filter of a stack request. Omitted
// fields are wildcards.
type SearchCriteria struct {
	University      *string  `json:"university,omitempty"`
	AreaOfStudy     *string  `json:"area_of_study,omitempty"`
	Degree          *string  `json:"degree,omitempty"`
	SocietyCategory *string  `json:"society_category,omitempty"`
	Interests       []string `json:"interests,omitempty"`
}

type GenerateSwipeStackRequest struct {
	SearchCriteria *SearchCriteria `json:"search_criteria,omitempty"`
}

// SwipeUser is one stack entry with its suggested choice.
type SwipeUser struct {
	UID    string `json:"uid"`
	Choice string `json:"choice"`
}

type GenerateSwipeStackResponse struct {
	Users []SwipeUser `json:"users"`
}

// SwipeChoice is one decision: "yes", "no" or "super".
type SwipeChoice struct {
	UID    string `json:"uid"`
	Choice string `json:"choice"`
}

type RegisterSwipeChoicesRequest struct {
	Choices []SwipeChoice `json:"choices"`
}

type RegisterSwipeChoicesResponse struct {
	Matches    []string `json:"matches"`
	SwipesLeft float64  `json:"swipes_left"`
}

type ReportUserRequest struct {
	UID string `json:"uid"`
}

type ReportUserResponse struct{}
