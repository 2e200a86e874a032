package companies

// CreateCompanyRequest is the registration payload. Email and password are
// optional as a pair; when present they create the company's first admin.
type CreateCompanyRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	Email     string `json:"email,omitempty" validate:"required_with=Password,omitempty,email,max=320"`
	Password  string `json:"password,omitempty" validate:"required_with=Email,omitempty,max=72"`
	AdminName string `json:"adminName,omitempty" validate:"omitempty,max=200"`
}
