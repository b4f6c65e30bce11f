// Package docs registers the OpenAPI description of the dashboard JSON API.
// Regenerate with `swag init -g cmd/dashboard/main.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "MPL-2.0"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/catalog": {
            "get": {
                "description": "Returns the products and dates offered for navigation",
                "produces": ["application/json"],
                "tags": ["dashboard"],
                "summary": "Navigation catalog",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/common.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/common.APIResponse"}}
                }
            }
        },
        "/events": {
            "post": {
                "description": "Applies select_product, select_date or select_signature to the caller's session and returns the new view",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["dashboard"],
                "summary": "Dispatch a navigation event",
                "parameters": [
                    {
                        "description": "Navigation event",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handler.EventRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/common.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/common.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/common.APIResponse"}}
                }
            }
        },
        "/view": {
            "get": {
                "description": "Returns the rendered view tree and navigation state of the caller's session",
                "produces": ["application/json"],
                "tags": ["dashboard"],
                "summary": "Current view",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/common.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/common.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "common.APIResponse": {
            "type": "object",
            "properties": {
                "data": {},
                "error": {"$ref": "#/definitions/common.ErrorInfo"},
                "meta": {"$ref": "#/definitions/common.Meta"}
            }
        },
        "common.ErrorInfo": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "common.Meta": {
            "type": "object",
            "properties": {
                "channel": {"type": "string"},
                "date": {"type": "string"},
                "loading": {"type": "boolean"},
                "product": {"type": "string"},
                "signature": {"type": "string"}
            }
        },
        "handler.EventRequest": {
            "type": "object",
            "required": ["kind"],
            "properties": {
                "kind": {
                    "type": "string",
                    "enum": ["select_product", "select_date", "select_signature"],
                    "example": "select_date"
                },
                "value": {"type": "string", "example": "2016-08-15"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Clouseau Dashboard API",
	Description:      "Crash signatures, backtraces and guilty patches per product, channel and date",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
