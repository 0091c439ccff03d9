package entity

type TemplateUser struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// TemplateView feeds the built-in HTML layout. Values are inserted as is.
type TemplateView struct {
	User                    TemplateUser `json:"user"`
	MailTitle               string       `json:"mail_title"`
	MailContent             string       `json:"mail_content"`
	URLAction               string       `json:"url_action"`
	ButtonActionTitle       string       `json:"button_action_title"`
	ButtonBackgroundColor   string       `json:"button_background_color"`
	ButtonColor             string       `json:"button_color"`
	GreetingWord            string       `json:"greeting_word"`
	FooterAllRightsReserved string       `json:"footer_all_rights_reserved"`
	AllRightsReservedYears  string       `json:"all_rights_reserved_years"`
	AppName                 string       `json:"app_name"`
	ConditionUsingText      string       `json:"condition_using_text"`
	PoliticsText            string       `json:"politics_text"`
	Protocol                string       `json:"protocol"`
}
