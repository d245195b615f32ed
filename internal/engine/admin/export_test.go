package admin

import "time"

func (s *Service) SetNow(now func() time.Time) { s.now = now }

var Growth = growth
