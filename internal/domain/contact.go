package domain

// ContactRequest is a message left through the site's contact form.
type ContactRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}
