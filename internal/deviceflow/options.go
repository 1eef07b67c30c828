package deviceflow

import "go.uber.org/zap"

// IssuerOption configures an Issuer
type IssuerOption func(*Issuer)

// WithVerificationURI sets the verification_uri returned to clients
// per RFC 8628 section 3.2
func WithVerificationURI(uri string) IssuerOption {
	return func(i *Issuer) {
		i.verificationURI = uri
	}
}

// WithScopeSeparators sets the scope delimiters in priority order.
// Anything other than " " is a deviation from RFC 6749 section 3.3.
func WithScopeSeparators(separators ...string) IssuerOption {
	return func(i *Issuer) {
		if len(separators) > 0 {
			i.separators = separators
		}
	}
}

// WithIssuerLogger sets the issuer logger
func WithIssuerLogger(l *zap.Logger) IssuerOption {
	return func(i *Issuer) {
		if l != nil {
			i.logger = l
		}
	}
}

// DecisionOption configures a Decider
type DecisionOption func(*Decider)

// WithModes registers response modes by name. A mode named DefaultModeName
// replaces the built-in default.
func WithModes(modes map[string]ResponseMode) DecisionOption {
	return func(d *Decider) {
		for name, mode := range modes {
			if mode != nil {
				d.modes[name] = mode
			}
		}
	}
}

// WithViews overrides the views rendered by the built-in default mode
func WithViews(views Views) DecisionOption {
	return func(d *Decider) {
		d.views = views.withDefaults()
	}
}

// WithDecisionLogger sets the decision engine logger
func WithDecisionLogger(l *zap.Logger) DecisionOption {
	return func(d *Decider) {
		if l != nil {
			d.logger = l
		}
	}
}
