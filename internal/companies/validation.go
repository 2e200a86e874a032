package companies

import (
	"github.com/vminventory/vminventory/internal/shared"
)

func (s *Service) validate(req *CreateCompanyRequest) error {
	req.Name = shared.NormalizeName(req.Name)
	req.AdminName = shared.NormalizeName(req.AdminName)
	req.Email = shared.NormalizeEmail(req.Email)
	return s.validator.Struct(req)
}
