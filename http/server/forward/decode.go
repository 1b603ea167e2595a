package forward

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/svcore/reqctx"
)

// transportRequest copies the fiber call into a transport neutral request.
func transportRequest(c *fiber.Ctx) (*reqctx.TransportRequest, error) {
	u, err := url.ParseRequestURI(c.OriginalURL())
	if err != nil {
		return nil, errx.Wrap(err, errx.WithType(errx.T_Validation), errx.WithCode(codeInvalidURL))
	}
	u.Host = c.Hostname()

	header := make(http.Header)
	for k, values := range c.GetReqHeaders() {
		for _, v := range values {
			header.Add(k, v)
		}
	}

	body, err := decodeBody(c)
	if err != nil {
		return nil, err
	}

	return &reqctx.TransportRequest{
		Method: c.Method(),
		URL:    u,
		Header: header,
		Body:   body,
	}, nil
}

// decodeBody decodes a JSON body. Calls without a body yield nil.
func decodeBody(c *fiber.Ctx) (any, error) {
	raw := c.Body()
	if len(raw) == 0 {
		return nil, nil //nolint:nilnil // no body is not an error
	}

	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		return nil, errx.New(
			"content type must be application/json for this request",
			errx.WithType(errx.T_Validation),
			errx.WithCode(codeInvalidContentType),
		)
	}

	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, errx.Wrap(err, errx.WithType(errx.T_Validation), errx.WithCode(codeInvalidJSONBody))
	}
	return body, nil
}
