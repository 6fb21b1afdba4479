// Package astrobridge lets component tests drive a server-only component
// renderer from browser-side test code. The component's source never loads
// in the restricted runtime: the import interceptor replaces it with a
// lightweight reference, Render ships that reference plus encoded props
// across the runtime boundary to the privileged renderer host, and the
// returned HTML is injected into a live document with real script
// execution semantics so island hydration can proceed.
//
// Typical use:
//
//	func TestCard(t *testing.T) {
//		astrobridge.AutoCleanup(t)
//
//		result, err := astrobridge.Render(t.Context(),
//			astrobridge.ComponentRef("/abs/path/Card.astro"),
//			&astrobridge.RenderOptions{Props: map[string]any{"title": "Hello World"}})
//		if err != nil {
//			t.Fatal(err)
//		}
//		if err := astrobridge.WaitForHydration(t.Context(), result); err != nil {
//			t.Fatal(err)
//		}
//		heading, err := result.GetByText("Hello World")
//		...
//	}
package astrobridge
