// Package prompts holds the catalog of LLM function contracts. Each contract
// describes an imaginary function's input, behavior and exact output shape; the
// model is asked to print what that function would return.
package prompts

import "sort"

// Prompt is a named contract sent to the model.
type Prompt struct {
	Name     string
	Contract string
}

var (
	ConvertUserInputToGoal = Prompt{
		Name: "convert_user_input_to_goal",
		Contract: `fn convert_user_input_to_goal(user_request: &str)
/// Input: Takes in a user request
/// Function: Converts user request into a short summarized goal
/// Output: Prints goal. All outputs start with "build a website that ..."
/// Example 1:
///   user_request = "I need a website that lets users login and logout. It needs to look fancy and accept payments."
///   OUTPUT = "build a website that handles users logging in and logging out and accepts payments"
/// Example 2:
///   user_request = "Create something that stores crypto price data in a database using supabase and retrieves prices on the frontend."
///   OUTPUT = "build a website that fetches and stores crypto price data within a supabase setup including a frontend UI to fetch the data."`,
	}

	PrintProjectScope = Prompt{
		Name: "print_project_scope",
		Contract: `fn print_project_scope(project_description: &str)
/// Input: Takes in a user request to build a website project description
/// Function: Converts user request into JSON response of information items required for a website build.
/// Important: At least one of the bool results must be true
/// Output: Prints an object response in the following format:
///   {
///     "is_crud_required": bool, // true if site needs CRUD functionality
///     "is_user_login_and_logout": bool, // true if site needs users to be able to log in and log out
///     "is_external_urls_required": bool // true if site needs to fetch data from third party providers
///   }
/// Example 1:
///   user_request = "I need a full stack website that accepts users and gets stock price data"
///   prints:
///   {
///     "is_crud_required": true,
///     "is_user_login_and_logout": true,
///     "is_external_urls_required": true
///   }
/// Example 2:
///   user_request = "I need a simple TODO app"
///   prints:
///   {
///     "is_crud_required": true,
///     "is_user_login_and_logout": false,
///     "is_external_urls_required": false
///   }`,
	}

	PrintSiteURLs = Prompt{
		Name: "print_site_urls",
		Contract: `fn print_site_urls(project_description: &str)
/// Input: Takes in a project description of a website build
/// Function: Outputs a list of external public API endpoints that should be used in the building of the website
/// Important: Only selects url endpoint(s) which do not require any API Keys at all
/// Output: Prints a list response of external urls in the following format:
/// ["url1", "url2", "url3", ...]
/// Example 1:
///   project_description = "Provides Crypto Price Data from Binance and Kraken"
///   prints:
/// ["https://api.binance.com/api/v3/exchangeInfo", "https://api.binance.com/api/v3/klines?symbol=BTCUSDT&interval=1d"]`,
	}

	PrintBackendWebserverCode = Prompt{
		Name: "print_backend_webserver_code",
		Contract: `fn print_backend_webserver_code(code_template_and_project_description: &str)
/// Input: Takes in a PROJECT_DESCRIPTION and CODE_TEMPLATE for a website backend build
/// Function: Takes the existing CODE_TEMPLATE and updates it to best fit the PROJECT_DESCRIPTION as a webserver.
///   The code uses only the crates already used by the template and keeps its structure.
///   The function provides the full working code, not just an outline.
/// Important: The backend code is ONLY for a webserver. Do not add a frontend.
/// Output: Prints ONLY the code, nothing else. No commentary and no markdown fences.`,
	}

	PrintImprovedWebserverCode = Prompt{
		Name: "print_improved_webserver_code",
		Contract: `fn print_improved_webserver_code(code_and_project_specification: &str)
/// Input: Takes in a CODE_TEMPLATE and a PROJECT_SPECIFICATION JSON for a website backend
/// Function: Performs the following tasks:
///   1. Removes any bugs in the code and adds minor additional functionality
///   2. Makes sure everything requested in the specification from a backend standpoint was followed.
///      If not, adds the feature. No code should be implemented later. Everything should be written now.
///   3. ONLY writes the code. No commentary.
/// Important: The backend code is ONLY for a webserver. Do not add a frontend.
/// Output: Prints ONLY the code, nothing else. No commentary and no markdown fences.`,
	}

	PrintFixedCode = Prompt{
		Name: "print_fixed_code",
		Contract: `fn print_fixed_code(broken_code_with_bugs: &str)
/// Input: Takes in CODE with BUGS reported by the compiler
/// Function: Removes the bugs from the code
/// Important: Only prints out the new and improved code. No commentary or anything else
/// Output: Prints ONLY the code, nothing else. No markdown fences.`,
	}

	PrintRestAPIEndpoints = Prompt{
		Name: "print_rest_api_endpoints",
		Contract: `fn print_rest_api_endpoints(code_input: &str)
/// Input: Takes in webserver backend CODE
/// Function: Prints out the JSON schema for url endpoints and their respective types
/// Logic: Script analyses all code and categorizes into the following object keys:
///   "route": This represents the url path of the endpoint
///   "is_route_dynamic": if a route has curly braces in it such as {symbol} or {id} as an example, then this will be set to "true"
///   "method": This represents the method being called
///   "request_body": This represents the body of a post method request
///   "response": This represents the output based upon the structs in the code and understanding the functions
/// Important: Only prints out the JSON schema. No commentary or anything else.
/// Must Not: Do not include any routes that are not public endpoints
/// Output: Prints a JSON list of objects in the following format:
/// [
///   {
///     "route": "/item/{id}",
///     "is_route_dynamic": "true",
///     "method": "get",
///     "request_body": "None",
///     "response": {
///       "id": "number",
///       "name": "string",
///       "completed": "bool"
///     }
///   },
///   ...
/// ]`,
	}

	PrintFrontendCode = Prompt{
		Name: "print_frontend_code",
		Contract: `fn print_frontend_code(project_description_and_api_schema: &str)
/// Input: Takes in a PROJECT_DESCRIPTION and the API_ENDPOINT_SCHEMA JSON of the website backend
/// Function: Writes a single self-contained HTML page with inline CSS and JavaScript that
///   implements the user interface of the website and calls the backend endpoints listed in the schema.
///   If the schema is empty, the page renders static content only.
/// Important: No external JavaScript frameworks or build tools.
/// Output: Prints ONLY the HTML document, nothing else. No commentary and no markdown fences.`,
	}
)

var catalog = map[string]Prompt{}

func init() {
	for _, p := range []Prompt{
		ConvertUserInputToGoal,
		PrintProjectScope,
		PrintSiteURLs,
		PrintBackendWebserverCode,
		PrintImprovedWebserverCode,
		PrintFixedCode,
		PrintRestAPIEndpoints,
		PrintFrontendCode,
	} {
		catalog[p.Name] = p
	}
}

// Lookup returns the prompt registered under name.
func Lookup(name string) (Prompt, bool) {
	p, ok := catalog[name]
	return p, ok
}

// All returns every prompt sorted by name.
func All() []Prompt {
	all := make([]Prompt, 0, len(catalog))
	for _, p := range catalog {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}
