// Package docs provides the generated OpenAPI document served at
// /swagger/doc.json. Code generated by swaggo/swag. DO NOT EDIT.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/rewards/v1/claims": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Claim one or more reward batches with membership proofs",
                "parameters": [
                    {
                        "type": "string",
                        "name": "X-Account-Address",
                        "in": "header",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Conflict"},
                    "422": {"description": "Unprocessable Entity"}
                }
            }
        },
        "/api/rewards/v1/distributions/clean": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Sweep residual balances of fully drained distributions",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/rewards/v1/distributions/{token}": {
            "get": {
                "produces": ["application/json"],
                "summary": "Get the distribution state for a token",
                "parameters": [
                    {
                        "type": "string",
                        "name": "token",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/api/rewards/v1/distributions/{token}/batches/{batch_number}/claimed": {
            "get": {
                "produces": ["application/json"],
                "summary": "Check whether a beneficiary already claimed a batch",
                "parameters": [
                    {
                        "type": "string",
                        "name": "token",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "integer",
                        "name": "batch_number",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "name": "beneficiary",
                        "in": "query",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/rewards/v1/distributions/{token}/batches/{batch_number}/root": {
            "get": {
                "produces": ["application/json"],
                "summary": "Get the commitment root registered for a batch",
                "parameters": [
                    {
                        "type": "string",
                        "name": "token",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "integer",
                        "name": "batch_number",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/api/rewards/v1/distributions/{token}/fund": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Fund a new reward batch for a token",
                "parameters": [
                    {
                        "type": "string",
                        "name": "token",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Conflict"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "",
	Schemes:          []string{},
	Title:            "Merkledrop Reward Distribution API",
	Description:      "Batched multi-token reward distribution ledger with Merkle membership proofs.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
