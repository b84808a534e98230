// Package graphql exposes the loaded business and menu as a read-only
// GraphQL API at /graphql.
//
//	{ business { name businessType } categories { name items { name price resolvedImageUrl } } }
package graphql

import (
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/storefront/pkg/menu"
)

// Source yields the menu to serve: the last successfully loaded menu (nil
// before the first success) and the loader's current snapshot.
type Source interface {
	Current() (*menu.Menu, menu.Snapshot)
}

var contactType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ContactInfo",
	Fields: graphql.Fields{
		"whatsapp": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(menu.ContactInfo).WhatsApp, nil
		}},
		"phone": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(menu.ContactInfo).Phone, nil
		}},
		"email": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(menu.ContactInfo).Email, nil
		}},
		"address": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(menu.ContactInfo).Address, nil
		}},
	},
})

var businessType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Business",
	Fields: graphql.Fields{
		"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.ID), Resolve: business(func(b menu.Business) any { return b.ID })},
		"name":        &graphql.Field{Type: graphql.NewNonNull(graphql.String), Resolve: business(func(b menu.Business) any { return b.Name })},
		"description": &graphql.Field{Type: graphql.String, Resolve: business(func(b menu.Business) any { return b.Description })},
		"businessType": &graphql.Field{Type: graphql.NewNonNull(graphql.String), Resolve: business(func(b menu.Business) any {
			return string(b.BusinessType)
		})},
		"contactInfo": &graphql.Field{Type: contactType, Resolve: business(func(b menu.Business) any { return b.ContactInfo })},
	},
})

func business(fn func(menu.Business) any) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) { return fn(p.Source.(menu.Business)), nil }
}

// itemFields is shared by Item and FeaturedItem.
func itemFields(get func(any) menu.Item) graphql.Fields {
	field := func(t graphql.Output, fn func(menu.Item) any) *graphql.Field {
		return &graphql.Field{Type: t, Resolve: func(p graphql.ResolveParams) (any, error) {
			return fn(get(p.Source)), nil
		}}
	}
	return graphql.Fields{
		"id":          field(graphql.NewNonNull(graphql.ID), func(it menu.Item) any { return it.ID }),
		"name":        field(graphql.NewNonNull(graphql.String), func(it menu.Item) any { return it.Name }),
		"description": field(graphql.String, func(it menu.Item) any { return it.Description }),
		"price":       field(graphql.NewNonNull(graphql.Float), func(it menu.Item) any { return it.Price.InexactFloat64() }),
		"priceText":   field(graphql.NewNonNull(graphql.String), func(it menu.Item) any { return it.Price.StringFixed(2) }),
		"resolvedImageUrl": field(graphql.String, func(it menu.Item) any {
			if it.ResolvedImageURL == nil {
				return nil
			}
			return *it.ResolvedImageURL
		}),
		"isAvailable": field(graphql.NewNonNull(graphql.Boolean), func(it menu.Item) any { return it.IsAvailable }),
		"isFeatured":  field(graphql.NewNonNull(graphql.Boolean), func(it menu.Item) any { return it.IsFeatured }),
	}
}

var itemType = graphql.NewObject(graphql.ObjectConfig{
	Name:   "Item",
	Fields: itemFields(func(src any) menu.Item { return src.(menu.Item) }),
})

var featuredType = graphql.NewObject(graphql.ObjectConfig{
	Name: "FeaturedItem",
	Fields: func() graphql.Fields {
		f := itemFields(func(src any) menu.Item { return src.(menu.FeaturedItem).Item })
		f["categoryId"] = &graphql.Field{Type: graphql.NewNonNull(graphql.ID), Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(menu.FeaturedItem).CategoryID, nil
		}}
		f["categoryName"] = &graphql.Field{Type: graphql.NewNonNull(graphql.String), Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(menu.FeaturedItem).CategoryName, nil
		}}
		return f
	}(),
})

var categoryType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Category",
	Fields: graphql.Fields{
		"id": &graphql.Field{Type: graphql.NewNonNull(graphql.ID), Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(menu.Category).ID, nil
		}},
		"name": &graphql.Field{Type: graphql.NewNonNull(graphql.String), Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(menu.Category).Name, nil
		}},
		"description": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(menu.Category).Description, nil
		}},
		"sortOrder": &graphql.Field{Type: graphql.NewNonNull(graphql.Int), Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(menu.Category).SortOrder, nil
		}},
		"items": &graphql.Field{Type: graphql.NewList(graphql.NewNonNull(itemType)), Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(menu.Category).Items, nil
		}},
	},
})

var loadStateType = graphql.NewObject(graphql.ObjectConfig{
	Name: "LoadState",
	Fields: graphql.Fields{
		"state": &graphql.Field{Type: graphql.NewNonNull(graphql.String), Resolve: func(p graphql.ResolveParams) (any, error) {
			return string(p.Source.(menu.Snapshot).State), nil
		}},
		"attempt": &graphql.Field{Type: graphql.Int, Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(menu.Snapshot).Attempt, nil
		}},
		"retryable": &graphql.Field{Type: graphql.Boolean, Resolve: func(p graphql.ResolveParams) (any, error) {
			return p.Source.(menu.Snapshot).Retryable, nil
		}},
		"message": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (any, error) {
			return menu.Message(p.Source.(menu.Snapshot).Err), nil
		}},
	},
})

// NewSchema builds the query schema over src.
func NewSchema(src Source) (graphql.Schema, error) {
	current := func() *menu.Menu {
		m, _ := src.Current()
		return m
	}

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"business": &graphql.Field{
				Type: businessType,
				Resolve: func(graphql.ResolveParams) (any, error) {
					if m := current(); m != nil {
						return m.Business, nil
					}
					return nil, nil
				},
			},
			"categories": &graphql.Field{
				Type: graphql.NewList(graphql.NewNonNull(categoryType)),
				Resolve: func(graphql.ResolveParams) (any, error) {
					if m := current(); m != nil {
						return m.Categories, nil
					}
					return []menu.Category{}, nil
				},
			},
			"featured": &graphql.Field{
				Type: graphql.NewList(graphql.NewNonNull(featuredType)),
				Resolve: func(graphql.ResolveParams) (any, error) {
					if m := current(); m != nil {
						return menu.FeaturedItems(m.Categories), nil
					}
					return []menu.FeaturedItem{}, nil
				},
			},
			"item": &graphql.Field{
				Type: itemType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					id, _ := p.Args["id"].(string)
					if m := current(); m != nil {
						if it, ok := m.Item(id); ok {
							return it, nil
						}
					}
					return nil, nil
				},
			},
			"loadState": &graphql.Field{
				Type: graphql.NewNonNull(loadStateType),
				Resolve: func(graphql.ResolveParams) (any, error) {
					_, s := src.Current()
					return s, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}

// Request is a GraphQL-over-HTTP request body.
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName"`
}

// Handler serves POST bodies and GET ?query= requests against schema.
func Handler(schema graphql.Schema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		switch r.Method {
		case http.MethodGet:
			req.Query = r.URL.Query().Get("query")
			req.OperationName = r.URL.Query().Get("operationName")
		default:
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
				http.Error(w, `{"errors":[{"message":"invalid request body"}]}`, http.StatusBadRequest)
				return
			}
		}

		res := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        r.Context(),
		})

		w.Header().Set("Content-Type", "application/json")
		if len(res.Errors) > 0 && res.Data == nil {
			w.WriteHeader(http.StatusBadRequest)
		}
		json.NewEncoder(w).Encode(res) //nolint:errcheck
	}
}
