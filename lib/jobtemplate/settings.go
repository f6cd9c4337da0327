// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jobtemplate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/mediaconvert"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// ErrEmptySettings is returned when the settings document is empty or
// whitespace. Spliced into the request body it would make the body
// itself invalid JSON.
var ErrEmptySettings = errors.New("job template settings are empty")

// createRequestBody builds the CreateJobTemplate body with settings
// spliced in verbatim.
func createRequestBody(name string, settings []byte) ([]byte, error) {
	if len(bytes.TrimSpace(settings)) == 0 {
		return nil, ErrEmptySettings
	}
	quotedName, err := json.Marshal(name)
	if err != nil {
		return nil, fmt.Errorf("encoding template name: %w", err)
	}

	var buffer bytes.Buffer
	buffer.Grow(len(quotedName) + len(settings) + 24)
	buffer.WriteString(`{"name":`)
	buffer.Write(quotedName)
	buffer.WriteString(`,"settings":`)
	buffer.Write(settings)
	buffer.WriteString(`}`)
	return buffer.Bytes(), nil
}

// updateRequestBody builds the UpdateJobTemplate body. The name travels
// in the URL path.
func updateRequestBody(settings []byte) ([]byte, error) {
	if len(bytes.TrimSpace(settings)) == 0 {
		return nil, ErrEmptySettings
	}

	var buffer bytes.Buffer
	buffer.Grow(len(settings) + 16)
	buffer.WriteString(`{"settings":`)
	buffer.Write(settings)
	buffer.WriteString(`}`)
	return buffer.Bytes(), nil
}

// withRawBody returns a per-call option that swaps the serialized
// request body for body. The middleware runs at the end of the
// Serialize step, after the SDK's operation serializer has set the
// method, path and headers, and before signing hashes the payload.
func withRawBody(body []byte) func(*mediaconvert.Options) {
	return func(options *mediaconvert.Options) {
		options.APIOptions = append(options.APIOptions, func(stack *middleware.Stack) error {
			return stack.Serialize.Add(&rawBody{body: body}, middleware.After)
		})
	}
}

type rawBody struct {
	body []byte
}

func (*rawBody) ID() string { return "RawJobTemplateBody" }

func (m *rawBody) HandleSerialize(ctx context.Context, in middleware.SerializeInput, next middleware.SerializeHandler) (
	out middleware.SerializeOutput, metadata middleware.Metadata, err error,
) {
	request, ok := in.Request.(*smithyhttp.Request)
	if !ok {
		return out, metadata, fmt.Errorf("unexpected transport type %T", in.Request)
	}

	request, err = request.SetStream(bytes.NewReader(m.body))
	if err != nil {
		return out, metadata, fmt.Errorf("replacing request body: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	in.Request = request

	return next.HandleSerialize(ctx, in)
}
