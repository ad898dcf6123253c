package mediawiki

type tokensResponse struct {
	Query struct {
		Tokens struct {
			LoginToken string `json:"logintoken"`
			CSRFToken  string `json:"csrftoken"`
		} `json:"tokens"`
	} `json:"query"`
}

type loginResponse struct {
	Login struct {
		Result   string `json:"result"`
		Reason   string `json:"reason"`
		Username string `json:"lgusername"`
	} `json:"login"`
}

type queryResponse struct {
	Query struct {
		Pages []page `json:"pages"`
	} `json:"query"`
}

type page struct {
	Title         string     `json:"title"`
	Missing       bool       `json:"missing"`
	Invalid       bool       `json:"invalid"`
	InvalidReason string     `json:"invalidreason"`
	Revisions     []revision `json:"revisions"`
}

type revision struct {
	Slots struct {
		Main struct {
			Content string `json:"content"`
		} `json:"main"`
	} `json:"slots"`
}

type editResponse struct {
	Edit struct {
		Result   string `json:"result"`
		NoChange bool   `json:"nochange"`
	} `json:"edit"`
}
