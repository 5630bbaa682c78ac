package router

import (
	"encoding/json"
	"io"
	"net/http"
	"path"
	"reflect"
	"strings"

	"github.com/patric-chuzhbe/flatapi/internal/apperr"
	"github.com/patric-chuzhbe/flatapi/internal/logger"
)

// Content type tags understood by render.
const (
	contentJSON    = "json"
	contentHTML    = "html"
	contentFavicon = "favicon"
	contentCSS     = "css"
	contentPNG     = "png"
	contentJPG     = "jpg"
	contentPlain   = "plain"
)

var contentTypeHeaders = map[string]string{
	contentJSON:    "application/json",
	contentHTML:    "text/html",
	contentFavicon: "image/x-icon",
	contentCSS:     "text/css",
	contentPNG:     "image/png",
	contentJPG:     "image/jpeg",
	contentPlain:   "text/plain",
}

// contentTypeOf picks a tag from the asset name, defaulting to plain.
func contentTypeOf(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".css":
		return contentCSS
	case ".png":
		return contentPNG
	case ".jpg", ".jpeg":
		return contentJPG
	case ".ico":
		return contentFavicon
	case ".html":
		return contentHTML
	default:
		return contentPlain
	}
}

// render writes payload with the header matching contentType. JSON payloads
// are encoded and a nil one becomes an empty object; other payloads must be
// raw bytes or a string.
func render(response http.ResponseWriter, status int, contentType string, payload any) {
	header, ok := contentTypeHeaders[contentType]
	if !ok {
		contentType, header = contentJSON, contentTypeHeaders[contentJSON]
	}

	var body []byte
	switch {
	case contentType == contentJSON:
		if payload == nil {
			payload = struct{}{}
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			logger.Log.Errorw("response could not be encoded", "err", err)
			status = http.StatusInternalServerError
			encoded, _ = json.Marshal(errorBody{Error: apperr.UnknownErrorMessage})
		}
		body = encoded
	default:
		switch p := payload.(type) {
		case []byte:
			body = p
		case string:
			body = []byte(p)
		}
	}

	response.Header().Set("Content-Type", header)
	response.WriteHeader(status)
	if _, err := response.Write(body); err != nil {
		logger.Log.Debugw("response write failed", "err", err)
	}
}

type errorBody struct {
	Error string `json:"Error"`
}

func renderJSON(response http.ResponseWriter, payload any) {
	render(response, http.StatusOK, contentJSON, payload)
}

// renderError maps err to its status and a one-field JSON body.
func renderError(response http.ResponseWriter, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		logger.Log.Errorw("request failed", "err", err)
	}

	render(response, status, contentJSON, errorBody{Error: apperr.Message(err)})
}

// decodeBody fills dst from the JSON body. A malformed or missing body
// leaves dst at its zero value.
func decodeBody(request *http.Request, dst any) {
	if request.Body == nil {
		return
	}

	body, err := io.ReadAll(request.Body)
	if err != nil || len(body) == 0 {
		return
	}

	if err := json.Unmarshal(body, dst); err != nil {
		logger.Log.Debugw("request body ignored", "uri", request.RequestURI, "err", err)
		target := reflect.ValueOf(dst).Elem()
		target.Set(reflect.Zero(target.Type()))
	}
}
