// Package docs holds the OpenAPI document served at /docs.
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
		"/users/register": {
			"post": {
				"tags": [
					"users"
				],
				"summary": "Register a buyer or supplier",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/RegisterRequest"
						}
					}
				]
			}
		},
		"/users/login": {
			"post": {
				"tags": [
					"users"
				],
				"summary": "Exchange credentials for a bearer token",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/LoginRequest"
						}
					}
				]
			}
		},
		"/users/me": {
			"get": {
				"tags": [
					"users"
				],
				"summary": "Current user",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			},
			"put": {
				"tags": [
					"users"
				],
				"summary": "Update own profile",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/ProfileUpdateRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/rfps": {
			"get": {
				"tags": [
					"rfps"
				],
				"summary": "List RFPs",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "query",
						"name": "skip",
						"type": "integer"
					},
					{
						"in": "query",
						"name": "limit",
						"type": "integer"
					},
					{
						"in": "query",
						"name": "status",
						"type": "string"
					},
					{
						"in": "query",
						"name": "category",
						"type": "string"
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			},
			"post": {
				"tags": [
					"rfps"
				],
				"summary": "Create a draft RFP",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/RFPCreateRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/rfps/{id}": {
			"get": {
				"tags": [
					"rfps"
				],
				"summary": "Get an RFP",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "path",
						"name": "id",
						"required": true,
						"type": "string",
						"format": "uuid"
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			},
			"put": {
				"tags": [
					"rfps"
				],
				"summary": "Update an RFP or change its status",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "path",
						"name": "id",
						"required": true,
						"type": "string",
						"format": "uuid"
					},
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/RFPUpdateRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/rfps/{id}/responses": {
			"get": {
				"tags": [
					"responses"
				],
				"summary": "List responses",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "path",
						"name": "id",
						"required": true,
						"type": "string",
						"format": "uuid"
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			},
			"post": {
				"tags": [
					"responses"
				],
				"summary": "Submit a response",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "path",
						"name": "id",
						"required": true,
						"type": "string",
						"format": "uuid"
					},
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/ResponseCreateRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/rfps/{id}/responses/{supplier_id}": {
			"put": {
				"tags": [
					"responses"
				],
				"summary": "Review a response",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "path",
						"name": "id",
						"required": true,
						"type": "string",
						"format": "uuid"
					},
					{
						"in": "path",
						"name": "supplier_id",
						"required": true,
						"type": "string",
						"format": "uuid"
					},
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/ResponseStatusUpdateRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/documents": {
			"get": {
				"tags": [
					"documents"
				],
				"summary": "List documents",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "query",
						"name": "skip",
						"type": "integer"
					},
					{
						"in": "query",
						"name": "limit",
						"type": "integer"
					},
					{
						"in": "query",
						"name": "rfp_id",
						"type": "string"
					},
					{
						"in": "query",
						"name": "response_id",
						"type": "string"
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/documents/upload": {
			"post": {
				"tags": [
					"documents"
				],
				"summary": "Upload a document",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "formData",
						"name": "file",
						"required": true,
						"type": "file"
					},
					{
						"in": "formData",
						"name": "rfp_id",
						"type": "string"
					},
					{
						"in": "formData",
						"name": "response_id",
						"type": "string"
					},
					{
						"in": "formData",
						"name": "is_public",
						"type": "boolean"
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				],
				"consumes": [
					"multipart/form-data"
				]
			}
		},
		"/documents/{id}": {
			"get": {
				"tags": [
					"documents"
				],
				"summary": "Get document metadata",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "path",
						"name": "id",
						"required": true,
						"type": "string",
						"format": "uuid"
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/documents/{id}/download": {
			"get": {
				"tags": [
					"documents"
				],
				"summary": "Download document content",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "path",
						"name": "id",
						"required": true,
						"type": "string",
						"format": "uuid"
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/notifications": {
			"get": {
				"tags": [
					"notifications"
				],
				"summary": "List own notifications",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "query",
						"name": "skip",
						"type": "integer"
					},
					{
						"in": "query",
						"name": "limit",
						"type": "integer"
					},
					{
						"in": "query",
						"name": "is_read",
						"type": "boolean"
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			},
			"post": {
				"tags": [
					"notifications"
				],
				"summary": "Create a notification",
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/NotificationCreateRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/notifications/read-all": {
			"put": {
				"tags": [
					"notifications"
				],
				"summary": "Mark every notification read",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/notifications/{id}": {
			"get": {
				"tags": [
					"notifications"
				],
				"summary": "Get a notification",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "path",
						"name": "id",
						"required": true,
						"type": "string",
						"format": "uuid"
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			},
			"put": {
				"tags": [
					"notifications"
				],
				"summary": "Mark a notification read or sent",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/APIResponse"
						}
					}
				},
				"parameters": [
					{
						"in": "path",
						"name": "id",
						"required": true,
						"type": "string",
						"format": "uuid"
					},
					{
						"in": "body",
						"name": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/NotificationUpdateRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		}
	},
	"definitions": {
		"APIResponse": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"data": {
					"type": "object"
				},
				"error": {
					"$ref": "#/definitions/APIError"
				},
				"meta": {
					"$ref": "#/definitions/Meta"
				}
			}
		},
		"APIError": {
			"type": "object",
			"properties": {
				"code": {
					"type": "string"
				},
				"message": {
					"type": "string"
				}
			}
		},
		"Meta": {
			"type": "object",
			"properties": {
				"skip": {
					"type": "integer"
				},
				"limit": {
					"type": "integer"
				},
				"total": {
					"type": "integer"
				}
			}
		},
		"RegisterRequest": {
			"type": "object",
			"properties": {
				"email": {
					"type": "string"
				},
				"username": {
					"type": "string"
				},
				"password": {
					"type": "string"
				},
				"first_name": {
					"type": "string"
				},
				"last_name": {
					"type": "string"
				},
				"company_name": {
					"type": "string"
				},
				"role": {
					"type": "string",
					"enum": [
						"Buyer",
						"Supplier"
					]
				}
			},
			"required": [
				"email",
				"username",
				"password",
				"role"
			]
		},
		"LoginRequest": {
			"type": "object",
			"properties": {
				"email": {
					"type": "string"
				},
				"password": {
					"type": "string"
				}
			},
			"required": [
				"email",
				"password"
			]
		},
		"ProfileUpdateRequest": {
			"type": "object",
			"properties": {
				"first_name": {
					"type": "string"
				},
				"last_name": {
					"type": "string"
				},
				"company_name": {
					"type": "string"
				}
			}
		},
		"RFPCreateRequest": {
			"type": "object",
			"properties": {
				"title": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"requirements": {
					"type": "object"
				},
				"deadline": {
					"type": "string",
					"format": "date-time"
				},
				"category": {
					"type": "string"
				},
				"tags": {
					"type": "array",
					"items": {
						"type": "string"
					}
				}
			},
			"required": [
				"title",
				"description"
			]
		},
		"RFPUpdateRequest": {
			"type": "object",
			"properties": {
				"title": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"requirements": {
					"type": "object"
				},
				"deadline": {
					"type": "string",
					"format": "date-time"
				},
				"category": {
					"type": "string"
				},
				"tags": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"status": {
					"type": "string",
					"enum": [
						"Draft",
						"Published",
						"Under Review",
						"Completed",
						"Cancelled"
					]
				}
			}
		},
		"ResponseCreateRequest": {
			"type": "object",
			"properties": {
				"content": {
					"type": "object"
				}
			},
			"required": [
				"content"
			]
		},
		"ResponseStatusUpdateRequest": {
			"type": "object",
			"properties": {
				"status": {
					"type": "string",
					"enum": [
						"Under Review",
						"Approved",
						"Rejected"
					]
				},
				"feedback": {
					"type": "string"
				}
			},
			"required": [
				"status"
			]
		},
		"NotificationCreateRequest": {
			"type": "object",
			"properties": {
				"user_id": {
					"type": "string"
				},
				"type": {
					"type": "string",
					"enum": [
						"email",
						"in_app",
						"sms"
					]
				},
				"title": {
					"type": "string"
				},
				"message": {
					"type": "string"
				},
				"data": {
					"type": "object"
				},
				"send_immediately": {
					"type": "boolean"
				}
			},
			"required": [
				"user_id",
				"type",
				"title",
				"message"
			]
		},
		"NotificationUpdateRequest": {
			"type": "object",
			"properties": {
				"is_read": {
					"type": "boolean"
				},
				"is_sent": {
					"type": "boolean"
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "RFP Engine API",
	Description:      "Buyers publish requests for proposal, suppliers respond, and both exchange documents and notifications.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
