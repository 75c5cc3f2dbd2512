package classmap

// Built-in layer tables. The default table carries the semantic classes the
// authoring system itself uses; the framework tables replace them with
// utility classes for the selected framework. Entries under "*" apply to any
// block type.

var defaultTable = &Table{
	Values: map[string]map[string]map[string]string{
		"*": {
			"align": {
				"left":   "alignleft",
				"center": "aligncenter",
				"right":  "alignright",
				"wide":   "alignwide",
				"full":   "alignfull",
			},
			"textAlign": {
				"left":   "has-text-align-left",
				"center": "has-text-align-center",
				"right":  "has-text-align-right",
			},
			"fontSize": {
				"small":   "has-small-font-size",
				"medium":  "has-medium-font-size",
				"large":   "has-large-font-size",
				"x-large": "has-x-large-font-size",
			},
			"backgroundColor": {
				"primary":   "has-primary-background-color has-background",
				"secondary": "has-secondary-background-color has-background",
				"white":     "has-white-background-color has-background",
				"black":     "has-black-background-color has-background",
			},
			"textColor": {
				"primary":   "has-primary-color has-text-color",
				"secondary": "has-secondary-color has-text-color",
				"white":     "has-white-color has-text-color",
				"black":     "has-black-color has-text-color",
			},
		},
		"core/separator": {
			"style": {
				"wide": "is-style-wide",
				"dots": "is-style-dots",
			},
		},
		"core/image": {
			"sizeSlug": {
				"thumbnail": "size-thumbnail",
				"medium":    "size-medium",
				"large":     "size-large",
				"full":      "size-full",
			},
		},
	},
	Bools: map[string]map[string]string{
		"core/paragraph": {
			"dropCap": "has-drop-cap",
		},
		"core/image": {
			"isRounded": "is-style-rounded",
		},
		"*": {
			"isStackedOnMobile": "is-stacked-on-mobile",
		},
	},
}

var tailwindTable = &Table{
	Values: map[string]map[string]map[string]string{
		"*": {
			"align": {
				"left":   "float-left mr-4",
				"center": "mx-auto",
				"right":  "float-right ml-4",
				"wide":   "max-w-screen-xl mx-auto",
				"full":   "w-full",
			},
			"textAlign": {
				"left":   "text-left",
				"center": "text-center",
				"right":  "text-right",
			},
			"fontSize": {
				"small":   "text-sm",
				"medium":  "text-base",
				"large":   "text-lg",
				"x-large": "text-xl",
			},
			"backgroundColor": {
				"primary":   "bg-blue-600",
				"secondary": "bg-gray-600",
				"white":     "bg-white",
				"black":     "bg-black",
			},
			"textColor": {
				"primary":   "text-blue-600",
				"secondary": "text-gray-600",
				"white":     "text-white",
				"black":     "text-black",
			},
		},
		"core/heading": {
			"level": {
				"1": "text-4xl font-bold",
				"2": "text-3xl font-bold",
				"3": "text-2xl font-semibold",
				"4": "text-xl font-semibold",
				"5": "text-lg font-medium",
				"6": "text-base font-medium",
			},
		},
		"core/image": {
			"sizeSlug": {
				"thumbnail": "max-w-[150px]",
				"medium":    "max-w-md",
				"large":     "max-w-3xl",
				"full":      "max-w-full",
			},
		},
	},
	Bools: map[string]map[string]string{
		"core/paragraph": {
			"dropCap": "first-letter:float-left first-letter:text-7xl first-letter:pr-2 first-letter:font-bold",
		},
		"core/image": {
			"isRounded": "rounded-full",
		},
		"*": {
			"isStackedOnMobile": "flex-col md:flex-row",
		},
	},
}

var bootstrapTable = &Table{
	Values: map[string]map[string]map[string]string{
		"*": {
			"align": {
				"left":   "float-start me-3",
				"center": "mx-auto d-block",
				"right":  "float-end ms-3",
				"wide":   "container-lg",
				"full":   "container-fluid px-0",
			},
			"textAlign": {
				"left":   "text-start",
				"center": "text-center",
				"right":  "text-end",
			},
			"fontSize": {
				"small":   "fs-6",
				"medium":  "fs-5",
				"large":   "fs-4",
				"x-large": "fs-3",
			},
			"backgroundColor": {
				"primary":   "bg-primary",
				"secondary": "bg-secondary",
				"white":     "bg-white",
				"black":     "bg-black",
			},
			"textColor": {
				"primary":   "text-primary",
				"secondary": "text-secondary",
				"white":     "text-white",
				"black":     "text-dark",
			},
		},
		"core/heading": {
			"level": {
				"1": "h1",
				"2": "h2",
				"3": "h3",
				"4": "h4",
				"5": "h5",
				"6": "h6",
			},
		},
		"core/image": {
			"sizeSlug": {
				"thumbnail": "img-thumbnail",
				"medium":    "img-fluid",
				"large":     "img-fluid",
				"full":      "w-100",
			},
		},
	},
	Bools: map[string]map[string]string{
		"core/paragraph": {
			"dropCap": "lead",
		},
		"core/image": {
			"isRounded": "rounded-circle",
		},
		"*": {
			"isStackedOnMobile": "flex-column flex-md-row",
		},
	},
}
