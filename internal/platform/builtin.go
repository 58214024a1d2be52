package platform

import "time"

// Gupy is a credential-login portal. The simple-application flow is a fixed
// dialog sequence; portals differ only in which optional dialogs show up.
func Gupy() Platform {
	return Platform{
		Name: "Gupy",
		Auth: AuthCredentials,

		BaseURL:        "https://portal.gupy.io/",
		SearchTemplate: "https://portal.gupy.io/job-search/term=",
		RemoteFilter:   "&workplaceTypes[]=remote",

		LoginPagePattern: "login",
		LoggedInPattern:  "candidates",
		Login: LoginForm{
			FormSelector: "form[data-testid='signin-form']",
			UserField:    "username",
			PassField:    "password",
		},

		CookieBanner: "button[data-testid='cookie-accept']",

		ListContainer: "ul[data-testid='job-list']",
		Item:          "ul[data-testid='job-list'] > li",
		ItemLink:      "a",
		ItemTitle:     "h3",
		ItemCompany:   "p",
		NoResults:     "[data-testid='no-results']",
		NextPage:      "a[data-testid='pagination-next']",
		ListTimeout:   10 * time.Second,
		NextTimeout:   5 * time.Second,

		Steps: []ApplyStep{
			{Name: "apply", Selector: "a[data-testid='apply-button']", Timeout: 20 * time.Second},
			{Name: "continue", Selector: "button[data-testid='continue-button']", Timeout: 20 * time.Second},
			{Name: "refuse-notifications", Selector: "#pushActionRefuse", Timeout: 5 * time.Second, Optional: true},
			{Name: "save-and-continue", Selector: "button[data-testid='save-continue']", Timeout: 20 * time.Second},
			{Name: "finalize", Selector: "#dialog-give-up-personalization-step", Timeout: 5 * time.Second, Final: true},
		},

		ConfirmMailFrom: "gupy.io",
	}
}

// LinkedIn authenticates by replaying captured session cookies; the feed URL
// confirms the session took.
func LinkedIn() Platform {
	return Platform{
		Name: "LinkedIn",
		Auth: AuthCookies,

		BaseURL:        "https://www.linkedin.com/",
		SearchTemplate: "https://www.linkedin.com/jobs/search/?f_AL=true&f_WT=2&keywords=",
		RemoteFilter:   "",

		LoggedInPattern:  "feed",
		LoginPagePattern: "login",

		ListContainer: ".scaffold-layout__list-container",
		Item:          "li.jobs-search-results__list-item",
		ItemLink:      "a",
		ItemTitle:     ".job-card-list__title",
		ItemCompany:   ".job-card-container__primary-description",
		NextPage:      "a[aria-label='View next page']",
		ListTimeout:   15 * time.Second,
		NextTimeout:   5 * time.Second,
		StripQuery:    true,

		Steps: []ApplyStep{
			{Name: "easy-apply", Selector: "button.jobs-apply-button", Timeout: 15 * time.Second},
			{Name: "submit", Selector: "button[aria-label='Submit application']", Timeout: 5 * time.Second, Final: true},
		},

		ConfirmMailFrom: "linkedin.com",
	}
}
