package entry

import (
	"github.com/aretw0/introspection"
)

// ServiceState exposes internal state for observability.
type ServiceState struct {
	ConfigPath     string `json:"config_path"`
	BranchPrefix   string `json:"branch_prefix"`
	GatewayType    string `json:"gateway_type"`
	SpamCheck      bool   `json:"spam_check"`
	Captcha        bool   `json:"captcha"`
	Notifications  bool   `json:"notifications"`
	Processed      int64  `json:"processed"`
	ReviewsOpened  int64  `json:"reviews_opened"`
	ReviewsHandled int64  `json:"reviews_handled"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	gatewayType := "unknown"
	if comp, ok := s.connector.(introspection.Component); ok {
		gatewayType = comp.ComponentType()
	}

	return ServiceState{
		ConfigPath:     s.configPath,
		BranchPrefix:   s.prefix,
		GatewayType:    gatewayType,
		SpamCheck:      s.spam != nil,
		Captcha:        s.captcha != nil,
		Notifications:  s.notifier != nil,
		Processed:      s.processed.Load(),
		ReviewsOpened:  s.reviews.Load(),
		ReviewsHandled: s.merged.Load(),
	}
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "entry-service"
}

var _ introspection.Introspectable = (*Service)(nil)
var _ introspection.Component = (*Service)(nil)
