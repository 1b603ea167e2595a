package reqctx

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cast"

	"github.com/rise-and-shine/svcore/pagination"
)

const defaultAction = "all"

// Normalize fills the request data of a transport call.
//
// Schema and action come from the first path segment after prefix
// ("schema.action" or a bare action). A JSON body holding none of the keys
// action, params and schema becomes the params; otherwise those keys override
// the path. Without a body, query fields become params. The $page, $pageSize,
// $query, $action and $schema query controls override everything else, and a
// malformed $query is ignored. Contexts of other kinds are left as they are.
func (c *Context) Normalize(prefix string) {
	if c.kind != KindRequest || c.raw == nil {
		return
	}

	data := c.data
	data.Body = c.raw.Body

	schema, action := splitVerb(pathVerb(c.raw.URL.Path, prefix))

	var params map[string]any
	switch body := c.raw.Body.(type) {
	case nil:
		for k, values := range c.raw.URL.Query() {
			if strings.HasPrefix(k, "$") || len(values) == 0 {
				continue
			}
			if params == nil {
				params = make(map[string]any)
			}
			params[k] = values[0]
		}
		if params != nil {
			data.Params = params
		}
	case map[string]any:
		if !hasCommandKeys(body) {
			data.Params = body
			break
		}
		if a := cast.ToString(body["action"]); a != "" {
			action = a
		}
		if s := cast.ToString(body["schema"]); s != "" {
			schema = s
		}
		data.Params = body["params"]
	default:
		data.Params = body
	}

	if data.Params == nil {
		data.Params = map[string]any{}
	}
	data.Page = 0
	data.PageSize = pagination.DefaultPageSize

	query := c.raw.URL.Query()
	if a := query.Get("$action"); a != "" {
		action = a
	}
	if s := query.Get("$schema"); s != "" {
		schema = s
	}
	for name, values := range query {
		if len(values) == 0 || values[0] == "" {
			continue
		}
		value := values[0]
		switch strings.ToLower(name) {
		case "$page":
			if page, err := cast.ToIntE(value); err == nil {
				data.Page = page
			}
		case "$pagesize":
			if size, err := cast.ToIntE(value); err == nil && size > 0 {
				data.PageSize = size
			}
		case "$query":
			var parsed any
			if err := json.Unmarshal([]byte(value), &parsed); err == nil {
				data.Params = parsed
			}
		}
	}
	data.Page, data.PageSize = pagination.Normalize(data.Page, data.PageSize, c.paging...)

	if action == "" && c.raw.Body == nil {
		action = defaultAction
	}
	data.Action = action
	data.Schema = schema
	data.ComputeVerb()

	c.tracker.TrackAction(data.Verb)
}

func pathVerb(path, prefix string) string {
	rest := strings.TrimPrefix(path, "/"+strings.Trim(prefix, "/"))
	rest = strings.Trim(rest, "/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func splitVerb(verb string) (string, string) {
	if verb == "" {
		return "", ""
	}
	schema, action, found := strings.Cut(verb, ".")
	if !found {
		return "", verb
	}
	return schema, action
}

func hasCommandKeys(body map[string]any) bool {
	for _, k := range []string{"action", "params", "schema"} {
		if v, ok := body[k]; ok && v != nil && v != "" {
			return true
		}
	}
	return false
}
