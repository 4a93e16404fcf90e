package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type message struct {
	Message string   `json:"mensagem,omitempty"`
	Errors  []string `json:"erros,omitempty"`
	Details string   `json:"details,omitempty"`
}

func decode(r *http.Request, into interface{}) error {
	rawJson, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(rawJson, into)
}

// decodeErrors describes a body that could not be decoded without exposing
// decoder internals to the caller.
func decodeErrors(err error) []string {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return []string{fmt.Sprintf("Campo %q em formato inválido.", typeErr.Field)}
	case errors.As(err, &typeErr):
		return []string{"Corpo da requisição deve ser um objeto JSON."}
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return []string{"JSON malformado."}
	}
	return []string{"Corpo da requisição ilegível."}
}

func respond(ctx context.Context, rw http.ResponseWriter, status int, data interface{}) {
	ctx, span := otel.GetTracerProvider().Tracer("").Start(ctx, "handler.respond")
	span.SetAttributes(attribute.Int("http.status", status))
	defer span.End()

	if status == http.StatusNoContent || data == nil {
		rw.WriteHeader(status)
		return
	}

	rawJson, err := json.Marshal(data)
	if err != nil {
		panic("respond-json-marshal:" + err.Error())
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	rw.Write(rawJson)
}

func respondMsg(ctx context.Context, rw http.ResponseWriter, status int, msg string) {
	respond(ctx, rw, status, message{Message: msg})
}
