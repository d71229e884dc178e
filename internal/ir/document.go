package ir

// Interface level names.
const (
	LevelResource = "resource"
	LevelRequest  = "request"
)

// Interface is a shared trait or resource type that endpoints can implement.
type Interface struct {
	UUID        string
	Name        string
	Level       string
	Required    bool
	Description string
}

// Container groups the parameters of a request or response by location.
type Container struct {
	Headers []Parameter
	Queries []Parameter
	Body    []Parameter
	Path    []Parameter
}

// Block returns the parameters stored for loc.
func (c Container) Block(loc Location) []Parameter {
	switch loc {
	case LocationHeader:
		return c.Headers
	case LocationQuery:
		return c.Queries
	case LocationBody:
		return c.Body
	case LocationPath:
		return c.Path
	}
	return nil
}

// Add returns a copy of c with p appended to the block of its location.
// Parameters without a location go to the body.
func (c Container) Add(p Parameter) Container {
	switch p.In {
	case LocationHeader:
		c.Headers = appendParam(c.Headers, p)
	case LocationQuery:
		c.Queries = appendParam(c.Queries, p)
	case LocationPath:
		c.Path = appendParam(c.Path, p)
	default:
		c.Body = appendParam(c.Body, p)
	}
	return c
}

func appendParam(ps []Parameter, p Parameter) []Parameter {
	out := make([]Parameter, 0, len(ps)+1)
	return append(append(out, ps...), p)
}

// HeaderSet indexes the keyed headers of c. Later headers win.
func (c Container) HeaderSet() map[string]Parameter {
	out := make(map[string]Parameter, len(c.Headers))
	for _, h := range c.Headers {
		if h.Key != "" {
			out[h.Key] = h
		}
	}
	return out
}

// Filter keeps, in every block, the parameters applicable under all of the
// given context parameters. A nil context leaves c unchanged.
func (c Container) Filter(context []Parameter) Container {
	if context == nil {
		return c
	}
	return Container{
		Headers: filterBlock(c.Headers, context),
		Queries: filterBlock(c.Queries, context),
		Body:    filterBlock(c.Body, context),
		Path:    filterBlock(c.Path, context),
	}
}

func filterBlock(block, context []Parameter) []Parameter {
	var out []Parameter
	for _, p := range block {
		ok := true
		for _, ctx := range context {
			if !p.IsValid(ctx) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, p)
		}
	}
	return out
}

// Response is one documented outcome of a request.
type Response struct {
	Code        string
	Description string
	Parameters  Container
	Contexts    []Parameter
	Interfaces  map[string]Reference
}

// Request is one operation on a resource.
type Request struct {
	ID          string
	Name        string
	Method      string
	Description string
	Parameters  Container
	Contexts    []Parameter
	Responses   []Response
	Interfaces  map[string]Reference
}

// Resource is a path and the requests it serves.
type Resource struct {
	UUID        string
	Name        string
	Description string
	Path        URLComponent
	Requests    []Request
	Interfaces  map[string]Reference
}

// Document is the complete IR of one API description.
type Document struct {
	Title       string
	Description string
	Version     string
	BaseURI     URLComponent
	Resources   []Resource
	Store       *Store
}
