package product

import "testing"

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		p    Product
		want bool
	}{
		{"complete", Product{Title: "Mouse", Price: 25.99, Link: "https://x.example.com"}, true},
		{"missing title", Product{Price: 25.99, Link: "https://x.example.com"}, false},
		{"whitespace title", Product{Title: "  ", Price: 25.99, Link: "https://x.example.com"}, false},
		{"zero price", Product{Title: "Mouse", Link: "https://x.example.com"}, false},
		{"negative price", Product{Title: "Mouse", Price: -1, Link: "https://x.example.com"}, false},
		{"missing link", Product{Title: "Mouse", Price: 25.99}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLinkClass(t *testing.T) {
	tests := []struct {
		name string
		link string
		host string
		want LinkKind
	}{
		{"storefront link", "https://techshop.example.com/p/1", "provider.example.com", LinkDirect},
		{"redirect link", "https://provider.example.com/r/1", "provider.example.com", LinkRedirect},
		{"redirect subdomain", "https://www.provider.example.com/r/1", "provider.example.com", LinkRedirect},
		{"case insensitive", "https://Provider.Example.COM/r/1", "provider.example.com", LinkRedirect},
		{"no redirect host configured", "https://provider.example.com/r/1", "", LinkDirect},
		{"unparseable link", "://bad", "provider.example.com", LinkDirect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Product{Link: tt.link}
			if got := p.LinkClass(tt.host); got != tt.want {
				t.Errorf("LinkClass(%q) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
}
