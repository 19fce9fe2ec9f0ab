// Package docs registers the OpenAPI document of the backend API with swag.
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
        "/api/pedidos": {
            "post": {
                "description": "Stores an order from an ordering channel as pending under its branch.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Receive an order",
                "parameters": [
                    {
                        "description": "Order",
                        "name": "order",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/orders.Submission"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.orderResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.orderResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.orderResponse"}}
                }
            }
        },
        "/api/createRestaurantUser": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Creates the identity account, the profile and the roster entry of a staff user.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["provisioning"],
                "summary": "Create a restaurant staff user",
                "parameters": [
                    {
                        "description": "Staff user",
                        "name": "user",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/provisioning.StaffRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/api.staffUserResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.staffUserResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.staffUserResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/api.staffUserResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.staffUserResponse"}}
                }
            }
        },
        "/api/createRestaurant": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["provisioning"],
                "summary": "Create a restaurant",
                "parameters": [
                    {
                        "description": "Restaurant",
                        "name": "restaurant",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/api.restaurantRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/api.restaurantResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.restaurantResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/api.restaurantResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.restaurantResponse"}}
                }
            }
        },
        "/api/admin/audit/{entityId}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Audit trail of an order, user or restaurant",
                "parameters": [
                    {"type": "string", "description": "Order id, uid or restaurant id", "name": "entityId", "in": "path", "required": true},
                    {"type": "integer", "description": "Maximum entries", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/api/admin/orphans": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "List orphaned identity accounts",
                "parameters": [
                    {"type": "integer", "description": "Maximum entries", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        }
    },
    "definitions": {
        "api.orderResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "message": {"type": "string"},
                "orderId": {"type": "string"},
                "success": {"type": "boolean"}
            }
        },
        "api.restaurantRequest": {
            "type": "object",
            "properties": {
                "address": {"type": "string"},
                "name": {"type": "string"}
            }
        },
        "api.restaurantResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "message": {"type": "string"},
                "restaurantId": {"type": "string"},
                "success": {"type": "boolean"}
            }
        },
        "api.staffUserResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "message": {"type": "string"},
                "success": {"type": "boolean"},
                "uid": {"type": "string"}
            }
        },
        "models.CustomerDetails": {
            "type": "object",
            "properties": {
                "address": {"type": "string"},
                "deliverTo": {"type": "string"},
                "name": {"type": "string"},
                "phoneNumber": {"type": "string"}
            }
        },
        "models.ProductDetail": {
            "type": "object",
            "properties": {
                "currency": {"type": "string"},
                "name": {"type": "string"},
                "price": {"type": "number"},
                "productId": {"type": "string"},
                "quantity": {"type": "number"},
                "specs": {"type": "string"},
                "total": {"type": "number"}
            }
        },
        "orders.Submission": {
            "type": "object",
            "properties": {
                "action": {"type": "string"},
                "currency": {"type": "string"},
                "customerDetails": {"$ref": "#/definitions/models.CustomerDetails"},
                "customerId": {"type": "string"},
                "deliverOrRest": {"type": "string"},
                "deliveryFee": {"type": "number"},
                "orderId": {"type": "string"},
                "orderToken": {"type": "string"},
                "overallSpecs": {"type": "string"},
                "payMethod": {"type": "string"},
                "pickedUpBy": {"type": "string"},
                "preparationTime": {"type": "number"},
                "productDetails": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/models.ProductDetail"}
                },
                "subtotal": {"type": "number"},
                "sucursal": {"type": "string"},
                "total": {"type": "number"}
            }
        },
        "provisioning.StaffRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "restaurantId": {"type": "string"},
                "role": {"type": "string", "example": "restaurante"}
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
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "cEats Backend API",
	Description:      "Order intake and account provisioning for the cEats restaurant dashboard.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
