package users

import "golang.org/x/crypto/bcrypt"

func (s *Service) UseMinCost() { s.cost = bcrypt.MinCost }
