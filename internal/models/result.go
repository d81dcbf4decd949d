package models

import (
	"time"
)

// ErrorCode identifies why an operation failed. Every code implies a different
// operator remedy, so codes are never merged.
type ErrorCode string

const (
	ErrTimeoutNav               ErrorCode = "timeout_nav"
	ErrBlockedOrChallenge       ErrorCode = "blocked_or_challenge"
	ErrTimeoutDialog            ErrorCode = "timeout_dialog"
	ErrDialogNotFoundAfterOpen  ErrorCode = "dialog_not_found_after_open"
	ErrDialogEmpty              ErrorCode = "dialog_empty"
	ErrListingsContainerMissing ErrorCode = "listings_container_not_found"
	ErrPageOutOfRange           ErrorCode = "page_out_of_range"
	ErrPaginationFailed         ErrorCode = "pagination_failed"
	ErrLoginVerificationFailed  ErrorCode = "login_verification_failed"
	ErrSelectorsNotFound        ErrorCode = "selectors_not_found"
	ErrMissingCredentials       ErrorCode = "missing_credentials"
	ErrNoValidStateAndNoCreds   ErrorCode = "no_valid_state_and_no_creds"
	ErrChallengeDetected        ErrorCode = "challenge_detected"
	ErrChartNotFound            ErrorCode = "chart_not_found"
	ErrInternal                 ErrorCode = "internal_error"
)

// LoginReason explains a LoginResult.
type LoginReason string

const (
	LoginReasonExistingState   LoginReason = "existing_state"
	LoginReasonLoggedIn        LoginReason = "logged_in"
	LoginReasonStateOnly       LoginReason = "state_only_unverified"
	LoginReasonMissingCreds    LoginReason = LoginReason(ErrMissingCredentials)
	LoginReasonNoStateNoCreds  LoginReason = LoginReason(ErrNoValidStateAndNoCreds)
	LoginReasonSelectors       LoginReason = LoginReason(ErrSelectorsNotFound)
	LoginReasonVerification    LoginReason = LoginReason(ErrLoginVerificationFailed)
	LoginReasonChallenge       LoginReason = LoginReason(ErrChallengeDetected)
	LoginReasonNavigationError LoginReason = LoginReason(ErrTimeoutNav)
)

// Artifacts points at diagnostic files captured on a failure path.
type Artifacts struct {
	Screenshot string `json:"screenshot,omitempty"`
	DOM        string `json:"dom,omitempty"`
}

// Empty reports whether no artifact was written.
func (a *Artifacts) Empty() bool {
	return a == nil || (a.Screenshot == "" && a.DOM == "")
}

// LoginResult is produced once per Session Manager call and never mutated.
type LoginResult struct {
	OK                bool        `json:"ok"`
	Reason            LoginReason `json:"reason"`
	UsedExistingState bool        `json:"used_existing_state"`
	LoginAttempted    bool        `json:"login_attempted"`
	Artifacts         *Artifacts  `json:"artifacts,omitempty"`
}

// Meta is carried by every operation result.
type Meta struct {
	Login     *LoginResult `json:"login,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	ElapsedMs int64        `json:"elapsed_ms"`
	Error     ErrorCode    `json:"error,omitempty"`
	Message   string       `json:"message,omitempty"`
	Artifacts *Artifacts   `json:"artifacts,omitempty"`
}

// Failed reports whether the operation ended with an error code.
func (m *Meta) Failed() bool {
	return m.Error != ""
}

// LastSoldResult is returned by FetchLastSoldOnce.
type LastSoldResult struct {
	URL            string   `json:"url"`
	Title          string   `json:"title,omitempty"`
	MostRecentSale *float64 `json:"most_recent_sale"`
	Meta
}

// SalesSnapshotResult is returned by FetchSalesSnapshot.
type SalesSnapshotResult struct {
	URL    string  `json:"url"`
	Title  string  `json:"title,omitempty"`
	Tables []Table `json:"tables"`
	Stats  []Stat  `json:"stats"`
	Text   string  `json:"text,omitempty"`
	Meta
}

// ActiveListingsResult is returned by FetchActiveListings.
type ActiveListingsResult struct {
	ProductID    string          `json:"product_id"`
	URL          string          `json:"url"`
	Listings     []ListingRecord `json:"listings"`
	PagesScanned int             `json:"pages_scanned"`
	Meta
}

// PagesResult is returned by FetchPagesInProduct.
type PagesResult struct {
	ProductID  string `json:"product_id"`
	URL        string `json:"url"`
	TotalPages int    `json:"total_pages"`
	Meta
}

// ListingsPageResult is returned by FetchActiveListingsInPage.
type ListingsPageResult struct {
	ProductID     string          `json:"product_id"`
	URL           string          `json:"url"`
	TargetPage    int             `json:"target_page"`
	CurrentPage   int             `json:"current_page"`
	TotalPages    int             `json:"total_pages"`
	Listings      []ListingRecord `json:"listings"`
	ListingsCount int             `json:"listings_count"`
	Meta
}

// VisitResult is returned by the debug Visit operation.
type VisitResult struct {
	URL      string `json:"url"`
	FinalURL string `json:"final_url,omitempty"`
	Title    string `json:"title,omitempty"`
	Blocked  bool   `json:"blocked"`
	Meta
}

// CookieInfo describes a stored cookie without exposing its value.
type CookieInfo struct {
	Name    string  `json:"name"`
	Domain  string  `json:"domain"`
	Path    string  `json:"path"`
	Expires float64 `json:"expires"`
}

// GraphCaptureResult is returned by CapturePriceGraph. Path is empty unless
// the chart was saved.
type GraphCaptureResult struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Path     string `json:"path,omitempty"`
	Selector string `json:"selector,omitempty"`
	Meta
}

// ProxyIPResult reports the egress address the browser is seen with.
type ProxyIPResult struct {
	EchoURL string `json:"echo_url"`
	IP      string `json:"ip,omitempty"`
	Raw     string `json:"raw,omitempty"`
	Meta
}

// LocalStorageEntry describes a stored local storage item without its value.
type LocalStorageEntry struct {
	Origin string `json:"origin"`
	Name   string `json:"name"`
	Size   int    `json:"size"`
}

// TraceStep is one timed stage of a traced page load.
type TraceStep struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TraceResult is returned by the debug Trace operation.
type TraceResult struct {
	URL      string      `json:"url"`
	FinalURL string      `json:"final_url,omitempty"`
	Steps    []TraceStep `json:"steps"`
	Meta
}

// AccountResult is returned by the debug MyAccount operation.
type AccountResult struct {
	URL           string `json:"url"`
	FinalURL      string `json:"final_url,omitempty"`
	Title         string `json:"title,omitempty"`
	Authenticated bool   `json:"authenticated"`
	Meta
}
