package k8sfixture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/utils/ptr"

	apiextensionsclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	apiextensionsscheme "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset/scheme"
)

// Timeouts holds the per-operation deadlines of a Client. Each bounded wait
// uses exactly one of these values; they are independent of each other.
type Timeouts struct {
	ApplyCRD      time.Duration
	Create        time.Duration
	Delete        time.Duration
	GetAnnotation time.Duration
	VerifyStatus  time.Duration
}

// DefaultTimeouts returns the Timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		ApplyCRD:      DefaultApplyCRDTimeout,
		Create:        DefaultCreateTimeout,
		Delete:        DefaultDeleteTimeout,
		GetAnnotation: DefaultGetAnnotationTimeout,
		VerifyStatus:  DefaultVerifyStatusTimeout,
	}
}

// Client is a synchronous facade over the Kubernetes API for integration
// tests. All operations block the calling goroutine until completion or
// timeout, and a single mutex serializes them: operations issued through the
// same Client execute one at a time, in issuance order. Blocking operations
// establish their watch before issuing the mutating call, so a change landing
// between the call and the first observation is never missed.
//
// A Client is typically constructed once per test process and shared; the
// unique-name helpers keep concurrent tests from colliding on resources.
type Client struct {
	mu sync.Mutex

	namespace string
	timeouts  Timeouts

	scheme *runtime.Scheme
	mapper meta.RESTMapper
	// refreshMapper rebuilds the RESTMapper from live discovery when a GVK
	// is not found, e.g. right after ApplyCRD registered a new type. Nil
	// when the mapper is static (tests).
	refreshMapper func() (meta.RESTMapper, error)

	dyn  dynamic.Interface
	core kubernetes.Interface
	ext  apiextensionsclientset.Interface
}

// NewClient builds a Client from the given REST configuration. The client
// owns a typed clientset, an apiextensions clientset, a dynamic client, and
// a discovery-backed REST mapper. Options configure the target namespace,
// the per-operation timeouts, and additional scheme registrations for custom
// resource types.
func NewClient(cfg *rest.Config, opts ...ClientOption) (*Client, error) {
	cc := defaultClientConfig()
	for _, opt := range opts {
		opt(&cc)
	}

	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register client-go types: %w", err)
	}
	if err := apiextensionsscheme.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register apiextensions types: %w", err)
	}
	for _, add := range cc.schemeFns {
		if err := add(scheme); err != nil {
			return nil, fmt.Errorf("register custom types: %w", err)
		}
	}

	core, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}
	ext, err := apiextensionsclientset.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create apiextensions clientset: %w", err)
	}
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create dynamic client: %w", err)
	}

	// A non-caching discovery client, so that refreshMapper observes freshly
	// registered CRDs via live API server requests.
	disc, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create discovery client: %w", err)
	}
	refresh := func() (meta.RESTMapper, error) {
		gr, err := restmapper.GetAPIGroupResources(disc)
		if err != nil {
			return nil, fmt.Errorf("discover api groups: %w", err)
		}
		return restmapper.NewDiscoveryRESTMapper(gr), nil
	}
	mapper, err := refresh()
	if err != nil {
		return nil, err
	}

	c := newClient(dyn, core, ext, mapper, scheme, cc)
	c.refreshMapper = refresh
	return c, nil
}

// newClient assembles a Client from pre-built collaborators. Tests use it
// with fake clients and a static REST mapper.
func newClient(
	dyn dynamic.Interface,
	core kubernetes.Interface,
	ext apiextensionsclientset.Interface,
	mapper meta.RESTMapper,
	scheme *runtime.Scheme,
	cc clientConfig,
) *Client {
	return &Client{
		namespace: cc.namespace,
		timeouts:  cc.timeouts,
		scheme:    scheme,
		mapper:    mapper,
		dyn:       dyn,
		core:      core,
		ext:       ext,
	}
}

// Namespace returns the namespace used for namespaced operations.
func (c *Client) Namespace() string {
	return c.namespace
}

// Timeouts returns a pointer to the client's per-operation timeouts so tests
// can adjust individual deadlines after construction.
func (c *Client) Timeouts() *Timeouts {
	return &c.timeouts
}

// mappingFor resolves the REST mapping of a GVK. On a no-match error the
// mapper is refreshed once from live discovery, which picks up CRDs applied
// after the client was built.
func (c *Client) mappingFor(gvk schema.GroupVersionKind) (*meta.RESTMapping, error) {
	mapping, err := c.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err == nil {
		return mapping, nil
	}
	if !meta.IsNoMatchError(err) || c.refreshMapper == nil {
		return nil, fmt.Errorf("rest mapping for %s: %w", gvk, err)
	}

	mapper, refreshErr := c.refreshMapper()
	if refreshErr != nil {
		return nil, refreshErr
	}
	c.mapper = mapper

	mapping, err = c.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		return nil, fmt.Errorf("rest mapping for %s: %w", gvk, err)
	}
	return mapping, nil
}

// resourceScope selects which namespace a dynamic resource handle is bound to.
type resourceScope int

const (
	// scopeDefault binds namespaced types to the client's namespace.
	scopeDefault resourceScope = iota
	// scopeAll lists namespaced types across all namespaces.
	scopeAll
)

// resourceFor returns a dynamic handle for the GVK, honoring the type's own
// cluster/namespace scoping rule.
func (c *Client) resourceFor(gvk schema.GroupVersionKind, scope resourceScope) (dynamic.ResourceInterface, error) {
	mapping, err := c.mappingFor(gvk)
	if err != nil {
		return nil, err
	}
	if mapping.Scope.Name() != meta.RESTScopeNameNamespace {
		return c.dyn.Resource(mapping.Resource), nil
	}
	if scope == scopeAll {
		return c.dyn.Resource(mapping.Resource).Namespace(metav1.NamespaceAll), nil
	}
	return c.dyn.Resource(mapping.Resource).Namespace(c.namespace), nil
}

// List returns all resources of the given type matching the label selector.
// The selector supports `=`, `==`, `!=` and comma-separated terms:
// `key1=value1,key2=value2`. Namespaced types are listed across all
// namespaces; an empty result is not an error.
func List[T any, P Resource[T]](c *Client, labelSelector string) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	gvk, err := c.gvkFor(P(new(T)))
	if err != nil {
		return nil, err
	}
	ri, err := c.resourceFor(gvk, scopeAll)
	if err != nil {
		return nil, err
	}

	list, err := ri.List(context.Background(), metav1.ListOptions{LabelSelector: labelSelector})
	if err != nil {
		return nil, fmt.Errorf("list %s [%s]: %w", gvk.Kind, labelSelector, err)
	}

	items := make([]T, 0, len(list.Items))
	for i := range list.Items {
		item, err := fromUnstructured[T, P](&list.Items[i])
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

// Apply decodes the YAML specification and upserts the resource server-side.
// See ApplyObject.
func Apply[T any, P Resource[T]](c *Client, spec string) (*T, error) {
	obj, err := FromYAML[T, P](spec)
	if err != nil {
		return nil, err
	}
	return ApplyObject[T, P](c, obj)
}

// ApplyObject creates or replaces the resource via server-side apply and
// returns it as decoded after the write. Conflicting field ownership is
// forced; the server may still reject the patch on schema or permission
// grounds, which surfaces verbatim.
func ApplyObject[T any, P Resource[T]](c *Client, obj P) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, gvk, err := c.toUnstructured(obj)
	if err != nil {
		return nil, err
	}
	applied, err := c.applyUnstructured(u, gvk)
	if err != nil {
		return nil, err
	}
	return fromUnstructured[T, P](applied)
}

// applyUnstructured performs the server-side apply for an unstructured
// object. Callers must hold c.mu.
func (c *Client) applyUnstructured(u *unstructured.Unstructured, gvk schema.GroupVersionKind) (*unstructured.Unstructured, error) {
	name := u.GetName()
	if name == "" {
		return nil, fmt.Errorf("apply %s: %w", gvk.Kind, ErrMissingName)
	}
	ri, err := c.resourceFor(gvk, scopeDefault)
	if err != nil {
		return nil, err
	}

	payload, err := u.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", gvk.Kind, name, err)
	}
	applied, err := ri.Patch(
		context.Background(),
		name,
		types.ApplyPatchType,
		payload,
		metav1.PatchOptions{FieldManager: DefaultFieldManager, Force: ptr.To(true)},
	)
	if err != nil {
		return nil, fmt.Errorf("apply %s %s: %w", gvk.Kind, name, err)
	}
	return applied, nil
}

// Find searches for a resource by name, using the client's namespace for
// namespaced types. A missing resource yields (nil, nil), never an error.
func Find[T any, P Resource[T]](c *Client, name string) (*T, error) {
	return find[T, P](c, name, scopeDefault)
}

// FindNamespaced searches for a namespaced resource by name in the client's
// namespace. A missing resource yields (nil, nil), never an error.
func FindNamespaced[T any, P Resource[T]](c *Client, name string) (*T, error) {
	return find[T, P](c, name, scopeDefault)
}

func find[T any, P Resource[T]](c *Client, name string, scope resourceScope) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	gvk, err := c.gvkFor(P(new(T)))
	if err != nil {
		return nil, err
	}
	ri, err := c.resourceFor(gvk, scope)
	if err != nil {
		return nil, err
	}

	u, err := ri.Get(context.Background(), name, metav1.GetOptions{})
	if errors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", gvk.Kind, name, err)
	}
	return fromUnstructured[T, P](u)
}

// GetStatus returns the given resource re-fetched from the API server,
// including status fields set asynchronously by a controller.
func GetStatus[T any, P Resource[T]](c *Client, obj P) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	gvk, err := c.gvkFor(obj)
	if err != nil {
		return nil, err
	}
	ri, err := c.resourceFor(gvk, scopeDefault)
	if err != nil {
		return nil, err
	}

	u, err := ri.Get(context.Background(), obj.GetName(), metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("get status of %s %s: %w", gvk.Kind, obj.GetName(), err)
	}
	return fromUnstructured[T, P](u)
}
