package rules

// builtin.go: The canonical rule set.
//
// Rule order is part of the output contract: findings are concatenated in
// the order returned by Builtins. New rules are appended, never inserted.

import (
	"fmt"
	"slices"
	"strings"

	"strider/internal/finding"
	"strider/internal/model"
)

// Rule ids of the built-in rules.
const (
	IDUnauthenticatedCrossing        = "unauthenticated-crossing"
	IDReplayableStateChange          = "replayable-state-change"
	IDUnprotectedIntegrityStore      = "unencrypted-integrity-critical-store"
	IDUnencryptedAtRestStore         = "unencrypted-at-rest-sensitive-store"
	IDUnauthenticatedBoundaryProcess = "unauthenticated-boundary-entry-process"
	IDUnencryptedTransport           = "unencrypted-transport"
)

// DefaultStateChangingProtocols lists the protocol tags treated as
// state-changing when no override is configured. Matching is
// case-insensitive.
func DefaultStateChangingProtocols() []string {
	return []string{
		"eth_sendTransaction",
		"eth_sendRawTransaction",
		"transaction-submission",
		"http-post",
		"http-put",
		"http-delete",
		"grpc-mutation",
	}
}

// secureTransports are protocol tags that imply an encrypted channel.
var secureTransports = []string{"https", "tls", "mtls", "wss", "grpcs", "ssh", "sftp", "transport-secured-web"}

// Builtins returns the built-in rules in canonical order. stateChanging
// overrides DefaultStateChangingProtocols when non-empty.
func Builtins(stateChanging []string) []Rule {
	if len(stateChanging) == 0 {
		stateChanging = DefaultStateChangingProtocols()
	}
	return []Rule{
		UnauthenticatedCrossing(),
		ReplayableStateChange(stateChanging),
		UnprotectedIntegrityStore(),
		UnencryptedAtRestStore(),
		UnauthenticatedBoundaryProcess(),
		UnencryptedTransport(),
	}
}

// UnauthenticatedCrossing flags every boundary-crossing dataflow whose origin
// is not authenticated. The finding is raised on the sink.
func UnauthenticatedCrossing() Rule {
	meta := Meta{
		ID:          IDUnauthenticatedCrossing,
		Title:       "Unauthenticated boundary crossing",
		Category:    finding.CategorySpoofing,
		Severity:    finding.SeverityHigh,
		Description: "Data crosses a trust boundary without authenticating its origin, so the receiver cannot tell a legitimate sender from an impersonator.",
		Mitigation:  "Authenticate the sender (signatures, mutual TLS, tokens) before accepting data across the boundary.",
	}
	return RuleFunc{M: meta, Fn: func(m *model.Model) []finding.Finding {
		var out []finding.Finding
		for _, df := range m.Dataflows() {
			if !m.CrossesBoundary(df) || df.Authenticated() {
				continue
			}
			out = append(out, emit(meta, df.Sink().ID(), fmt.Sprintf(
				"%s receives unauthenticated %q from %s across a trust boundary",
				df.Sink().Name(), df.Label(), df.Source().Name())))
		}
		return out
	}}
}

// ReplayableStateChange flags state-changing dataflows that lack replay
// protection.
func ReplayableStateChange(protocols []string) Rule {
	set := make(map[string]bool, len(protocols))
	for _, p := range protocols {
		set[normalizeProtocol(p)] = true
	}
	meta := Meta{
		ID:          IDReplayableStateChange,
		Title:       "Replayable state change",
		Category:    finding.CategoryTampering,
		Severity:    finding.SeverityHigh,
		Description: "A state-changing operation can be captured and submitted again.",
		Mitigation:  "Bind each request to a nonce, sequence number or expiry and reject duplicates.",
	}
	return RuleFunc{M: meta, Fn: func(m *model.Model) []finding.Finding {
		var out []finding.Finding
		for _, df := range m.Dataflows() {
			if !df.Replayable() || !set[normalizeProtocol(df.Protocol())] {
				continue
			}
			out = append(out, emit(meta, df.ID(), fmt.Sprintf(
				"%q (%s) changes state and is replayable", df.Label(), df.Protocol())))
		}
		return out
	}}
}

// UnprotectedIntegrityStore flags datastores holding sensitive data without
// integrity protection.
func UnprotectedIntegrityStore() Rule {
	meta := Meta{
		ID:          IDUnprotectedIntegrityStore,
		Title:       "Sensitive store without integrity protection",
		Category:    finding.CategoryTampering,
		Severity:    finding.SeverityHigh,
		Description: "Sensitive records can be altered without detection.",
		Mitigation:  "Protect stored records with MACs, signatures or an append-only log.",
	}
	return RuleFunc{M: meta, Fn: func(m *model.Model) []finding.Finding {
		var out []finding.Finding
		for _, e := range m.ElementsOfKind(model.Datastore) {
			if e.StoresSensitiveData() && !e.IsIntegrityProtected() {
				out = append(out, emit(meta, e.ID(), e.Name()+" stores sensitive data without integrity protection"))
			}
		}
		return out
	}}
}

// UnencryptedAtRestStore flags datastores holding sensitive data without
// encryption at rest.
func UnencryptedAtRestStore() Rule {
	meta := Meta{
		ID:          IDUnencryptedAtRestStore,
		Title:       "Sensitive store not encrypted at rest",
		Category:    finding.CategoryInformationDisclosure,
		Severity:    finding.SeverityMedium,
		Description: "Anyone with access to the storage medium can read the sensitive data.",
		Mitigation:  "Encrypt sensitive records at rest and keep keys outside the store.",
	}
	return RuleFunc{M: meta, Fn: func(m *model.Model) []finding.Finding {
		var out []finding.Finding
		for _, e := range m.ElementsOfKind(model.Datastore) {
			if e.StoresSensitiveData() && !e.IsEncrypted() {
				out = append(out, emit(meta, e.ID(), e.Name()+" stores sensitive data unencrypted"))
			}
		}
		return out
	}}
}

// UnauthenticatedBoundaryProcess flags processes inside a trust boundary that
// receive cross-boundary data without implementing authentication. One
// finding per process.
func UnauthenticatedBoundaryProcess() Rule {
	meta := Meta{
		ID:          IDUnauthenticatedBoundaryProcess,
		Title:       "Boundary entry point without authentication",
		Category:    finding.CategoryElevationOfPrivilege,
		Severity:    finding.SeverityHigh,
		Description: "A process reachable from outside its trust zone accepts requests without authenticating callers.",
		Mitigation:  "Authenticate and authorize callers at the process that receives cross-boundary traffic.",
	}
	return RuleFunc{M: meta, Fn: func(m *model.Model) []finding.Finding {
		var out []finding.Finding
		for _, e := range m.ElementsOfKind(model.Process) {
			if m.ResolvedBoundary(e) == nil || e.ImplementsAuthentication() {
				continue
			}
			var sources []string
			seen := make(map[string]bool)
			for df := range m.Incoming(e) {
				if src := df.Source(); m.CrossesBoundary(df) && !seen[src.ID()] {
					seen[src.ID()] = true
					sources = append(sources, src.Name())
				}
			}
			if len(sources) == 0 {
				continue
			}
			out = append(out, emit(meta, e.ID(), fmt.Sprintf(
				"%s accepts cross-boundary input from %s without authentication",
				e.Name(), strings.Join(sources, ", "))))
		}
		return out
	}}
}

// UnencryptedTransport flags boundary-crossing dataflows whose protocol is
// not a secured transport.
func UnencryptedTransport() Rule {
	meta := Meta{
		ID:          IDUnencryptedTransport,
		Title:       "Unencrypted transport across boundary",
		Category:    finding.CategoryInformationDisclosure,
		Severity:    finding.SeverityLow,
		Description: "Data leaves its trust zone over a channel that does not declare transport encryption.",
		Mitigation:  "Carry the flow over TLS or an equivalent secured channel.",
	}
	return RuleFunc{M: meta, Fn: func(m *model.Model) []finding.Finding {
		var out []finding.Finding
		for _, df := range m.Dataflows() {
			if !m.CrossesBoundary(df) || slices.Contains(secureTransports, normalizeProtocol(df.Protocol())) {
				continue
			}
			out = append(out, emit(meta, df.ID(), fmt.Sprintf(
				"%q crosses a trust boundary over %s", df.Label(), df.Protocol())))
		}
		return out
	}}
}

// normalizeProtocol folds a protocol tag for comparison.
func normalizeProtocol(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}
