package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/voxswitch/ivr-engine/internal/dispatch"
	"github.com/voxswitch/ivr-engine/internal/engineerr"
	"github.com/voxswitch/ivr-engine/internal/model"
	"github.com/voxswitch/ivr-engine/internal/session"
)

// API implements opcodes 111 and 112: resolves the target endpoint against
// the WebAPI catalog (falling back to a literal node URL), attaches bearer
// auth when required, sends the node's body template with {{name}}
// placeholders filled from host variables under the node's content type
// (the body is not re-encoded for that type), and persists top-level JSON
// response fields to session variables (nested paths are not resolved).
type API struct{ Deps }

func NewAPI(d Deps) *API { return &API{Deps: d} }

func (a *API) Execute(ctx context.Context, opcode dispatch.Opcode, node *model.Node, sc *session.Context) (dispatch.Result, error) {
	switch opcode {
	case dispatch.OpHTTPGet, dispatch.OpHTTPPost:
	default:
		return dispatch.Result{}, engineerr.UnknownOpcode(int(opcode))
	}

	method := http.MethodGet
	if opcode == dispatch.OpHTTPPost {
		method = http.MethodPost
	}

	target, authRequired, contentType := a.resolveEndpoint(node)
	if contentType == "" {
		contentType = node.ContentType
	}
	if contentType == "" {
		contentType = "application/json"
	}
	if node.Method != "" {
		method = strings.ToUpper(node.Method)
	}

	var body io.Reader
	if node.BodyTemplate != "" {
		body = strings.NewReader(a.renderBody(node.BodyTemplate, sc))
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return dispatch.Result{}, engineerr.Wrap(engineerr.KindHandlerFailure, err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	if (authRequired || node.RequiresAuth) && a.Auth != nil {
		header, err := a.Auth.GetAuthHeader(ctx)
		if err != nil {
			a.Log.Warn().Err(err).Msg("failed to acquire auth header, sending request unauthenticated")
		} else {
			req.Header.Set("Authorization", header)
		}
	}

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		a.Log.Warn().Err(err).Str("url", target).Msg("api call failed, continuing with empty response")
		return dispatch.Result{}, nil
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		a.Log.Warn().Err(err).Msg("failed to read api response body")
		return dispatch.Result{}, nil
	}

	a.applyResponseFieldMap(ctx, node, sc, data)
	return dispatch.Result{}, nil
}

// resolveEndpoint prefers the named catalog entry, falling back to the
// node's literal URL when the node names no endpoint or the catalog lacks
// it.
func (a *API) resolveEndpoint(node *model.Node) (target string, authRequired bool, contentType string) {
	if node.EndpointName != "" && a.Store != nil {
		if ep, ok := a.Store.WebAPIEndpoints()[node.EndpointName]; ok {
			return ep.URL, ep.AuthRequired, ""
		}
		a.Log.Warn().Str("endpoint", node.EndpointName).Msg("endpoint not found in catalog, falling back to node URL")
	}
	return node.URL, false, ""
}

func (a *API) renderBody(tmpl string, sc *session.Context) string {
	out := tmpl
	for _, name := range extractPlaceholders(tmpl) {
		v, _ := sc.Host().GetVariable(name)
		out = strings.ReplaceAll(out, "{{"+name+"}}", v)
	}
	return out
}

// extractPlaceholders finds {{name}} tokens without pulling in a templating
// library for a substitution this simple.
func extractPlaceholders(s string) []string {
	var names []string
	for {
		start := strings.Index(s, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "}}")
		if end == -1 {
			break
		}
		names = append(names, strings.TrimSpace(s[start+2:start+end]))
		s = s[start+end+2:]
	}
	return names
}

// applyResponseFieldMap copies JSON response fields into session variables
// per the node's ResponseFieldMap (response key -> session variable name).
func (a *API) applyResponseFieldMap(ctx context.Context, node *model.Node, sc *session.Context, body []byte) {
	if len(node.ResponseFieldMap) == 0 {
		return
	}
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		a.Log.Warn().Err(err).Msg("api response is not a JSON object, skipping field mapping")
		return
	}
	for field, varName := range node.ResponseFieldMap {
		raw, ok := parsed[field]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			s = strings.Trim(string(raw), `"`)
		}
		if err := sc.SetVariable(ctx, varName, s, true); err != nil {
			a.Log.Warn().Err(err).Str("variable", varName).Msg("failed to set variable from api response")
		}
	}
}
